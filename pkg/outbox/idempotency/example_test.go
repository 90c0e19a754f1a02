package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func ExampleManager_Once() {
	ctx := context.Background()
	manager, _ := NewManager(newFakeStore(), 30*24*time.Hour)
	eventID := uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479")

	for i := 0; i < 2; i++ {
		err := manager.Once(ctx, "analytics-worker", eventID, func(context.Context) error {
			fmt.Println("recording sale")
			return nil
		})
		if err == ErrAlreadyProcessed {
			fmt.Println("duplicate delivery skipped")
		}
	}
	// Output:
	// recording sale
	// duplicate delivery skipped
}
