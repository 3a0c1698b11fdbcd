package ingress

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/commentpilot/commentpilot/internal/models"
)

func TestEventKey(t *testing.T) {
	a := &models.WebhookPayload{Entry: []models.WebhookEntry{
		{ID: "page_1", Time: 1700000000},
		{ID: "page_2", Time: 1700000033},
	}}
	b := &models.WebhookPayload{Entry: []models.WebhookEntry{
		{ID: "page_2", Time: 1700000033},
		{ID: "page_1", Time: 1700000000},
	}}

	// Entry order within a delivery is not significant, but b's first entry
	// carries a different timestamp so the keys differ.
	if EventKey(a) == EventKey(b) {
		t.Error("first-entry timestamp must contribute to the key")
	}

	c := &models.WebhookPayload{Entry: []models.WebhookEntry{
		{ID: "page_1", Time: 1700000000},
		{ID: "page_2", Time: 1700000033},
	}}
	if EventKey(a) != EventKey(c) {
		t.Error("identical deliveries must share a key")
	}

	if EventKey(&models.WebhookPayload{}) != EventKey(&models.WebhookPayload{}) {
		t.Error("empty deliveries must share a key")
	}
}

func TestMemoryDeduper_ClaimOnce(t *testing.T) {
	d := NewMemoryDeduper(time.Minute)
	ctx := context.Background()

	if !d.Claim(ctx, "k1") {
		t.Fatal("first claim must win")
	}
	if d.Claim(ctx, "k1") {
		t.Error("second claim must lose")
	}
	if !d.Claim(ctx, "k2") {
		t.Error("distinct keys claim independently")
	}
}

func TestMemoryDeduper_ExpiredKeysCanBeReclaimed(t *testing.T) {
	d := NewMemoryDeduper(10 * time.Millisecond)
	ctx := context.Background()

	d.Claim(ctx, "k1")
	d.seen["k1"] = time.Now().Add(-time.Second)

	if !d.Claim(ctx, "k1") {
		t.Error("expired key must be claimable again")
	}
}

func TestMemoryDeduper_BoundedGrowth(t *testing.T) {
	d := NewMemoryDeduper(time.Hour)
	ctx := context.Background()

	for i := 0; i < memoryDedupCap+100; i++ {
		d.Claim(ctx, fmt.Sprintf("k%d", i))
	}

	if len(d.seen) > memoryDedupCap {
		t.Errorf("set must stay bounded, have %d", len(d.seen))
	}

	// Recent keys survive the prune.
	if d.Claim(ctx, fmt.Sprintf("k%d", memoryDedupCap+99)) {
		t.Error("most recent key must still be claimed")
	}
}
