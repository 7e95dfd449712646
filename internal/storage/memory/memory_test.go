package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	brainModel "github.com/leduyhoang1994/quivr/internal/model/brain"
	chatModel "github.com/leduyhoang1994/quivr/internal/model/chat"
	"github.com/leduyhoang1994/quivr/internal/storage"
)

func TestChatLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	userID := uuid.New()

	created, err := store.CreateChat(ctx, chatModel.Chat{UserID: userID, Name: "first"})
	if err != nil {
		t.Fatalf("CreateChat failed: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Fatalf("expected an assigned chat id")
	}
	if created.CreationTime.IsZero() {
		t.Fatalf("expected an assigned creation time")
	}

	fetched, err := store.GetChat(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetChat failed: %v", err)
	}
	if fetched.Name != "first" {
		t.Fatalf("expected name %q, got %q", "first", fetched.Name)
	}

	name := "renamed"
	updated, err := store.UpdateChat(ctx, created.ID, chatModel.UpdatableProperties{Name: &name})
	if err != nil {
		t.Fatalf("UpdateChat failed: %v", err)
	}
	if updated.Name != "renamed" {
		t.Fatalf("expected renamed chat, got %q", updated.Name)
	}

	if err := store.DeleteChat(ctx, created.ID); err != nil {
		t.Fatalf("DeleteChat failed: %v", err)
	}
	if _, err := store.GetChat(ctx, created.ID); !errors.Is(err, storage.ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
}

func TestUpdateMessageByID(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	chatID := uuid.New()

	entry, err := store.AddHistory(ctx, chatModel.CreateHistory{ChatID: chatID, UserMessage: "q", Assistant: ""})
	if err != nil {
		t.Fatalf("AddHistory failed: %v", err)
	}

	finalized, err := store.UpdateMessageByID(ctx, entry.MessageID, "q", "full answer")
	if err != nil {
		t.Fatalf("UpdateMessageByID failed: %v", err)
	}
	if finalized.Assistant != "full answer" {
		t.Fatalf("expected finalized answer, got %q", finalized.Assistant)
	}

	history, err := store.GetHistory(ctx, chatID)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(history) != 1 || history[0].Assistant != "full answer" {
		t.Fatalf("expected the stored entry to be updated, got %+v", history)
	}

	if _, err := store.UpdateMessageByID(ctx, uuid.New(), "", "x"); !errors.Is(err, storage.ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestDeleteChatHistoryDropsMessageIndex(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	chatID := uuid.New()

	entry, err := store.AddHistory(ctx, chatModel.CreateHistory{ChatID: chatID, UserMessage: "q", Assistant: "a"})
	if err != nil {
		t.Fatalf("AddHistory failed: %v", err)
	}
	if err := store.DeleteChatHistory(ctx, chatID); err != nil {
		t.Fatalf("DeleteChatHistory failed: %v", err)
	}
	if _, err := store.UpdateMessageByID(ctx, entry.MessageID, "", "x"); !errors.Is(err, storage.ErrMessageNotFound) {
		t.Fatalf("expected the message index to be cleared, got %v", err)
	}
}

func TestNotifications(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	chatID := uuid.New()

	if _, err := store.AddNotification(ctx, chatModel.Notification{ChatID: chatID, Message: "processing", Status: "pending"}); err != nil {
		t.Fatalf("AddNotification failed: %v", err)
	}
	notifications, err := store.GetNotifications(ctx, chatID)
	if err != nil {
		t.Fatalf("GetNotifications failed: %v", err)
	}
	if len(notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifications))
	}

	if err := store.RemoveChatNotifications(ctx, chatID); err != nil {
		t.Fatalf("RemoveChatNotifications failed: %v", err)
	}
	notifications, err = store.GetNotifications(ctx, chatID)
	if err != nil {
		t.Fatalf("GetNotifications failed: %v", err)
	}
	if len(notifications) != 0 {
		t.Fatalf("expected no notifications, got %d", len(notifications))
	}
}

func TestSetDefaultBrainSwitches(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	userID := uuid.New()
	first := uuid.New()
	second := uuid.New()

	for _, brainID := range []uuid.UUID{first, second} {
		if err := store.CreateBrainUser(ctx, brainModel.BrainUser{
			UserID:    userID,
			BrainID:   brainID,
			Rights:    brainModel.RoleOwner,
			IsDefault: brainID == first,
		}); err != nil {
			t.Fatalf("CreateBrainUser failed: %v", err)
		}
	}

	if err := store.SetDefaultBrain(ctx, userID, second); err != nil {
		t.Fatalf("SetDefaultBrain failed: %v", err)
	}
	users, err := store.GetUserBrainUsers(ctx, userID)
	if err != nil {
		t.Fatalf("GetUserBrainUsers failed: %v", err)
	}
	for _, bu := range users {
		if bu.BrainID == second && !bu.IsDefault {
			t.Fatalf("expected the second brain to become default")
		}
		if bu.BrainID == first && bu.IsDefault {
			t.Fatalf("expected the first brain to lose default")
		}
	}

	if err := store.SetDefaultBrain(ctx, userID, uuid.New()); !errors.Is(err, storage.ErrBrainUserNotFound) {
		t.Fatalf("expected ErrBrainUserNotFound, got %v", err)
	}
}

func TestDeleteBrainUsers(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	owner := uuid.New()
	viewer := uuid.New()
	brainID := uuid.New()

	seed := func() {
		if err := store.CreateBrainUser(ctx, brainModel.BrainUser{UserID: owner, BrainID: brainID, Rights: brainModel.RoleOwner}); err != nil {
			t.Fatalf("CreateBrainUser failed: %v", err)
		}
		if err := store.CreateBrainUser(ctx, brainModel.BrainUser{UserID: viewer, BrainID: brainID, Rights: brainModel.RoleViewer}); err != nil {
			t.Fatalf("CreateBrainUser failed: %v", err)
		}
	}

	seed()
	if err := store.DeleteBrainUsers(ctx, brainID, true); err != nil {
		t.Fatalf("DeleteBrainUsers failed: %v", err)
	}
	if _, err := store.GetBrainUser(ctx, owner, brainID); err != nil {
		t.Fatalf("expected the owner record to survive keepOwners, got %v", err)
	}
	if _, err := store.GetBrainUser(ctx, viewer, brainID); !errors.Is(err, storage.ErrBrainUserNotFound) {
		t.Fatalf("expected the viewer record to be removed, got %v", err)
	}

	seed()
	if err := store.DeleteBrainUsers(ctx, brainID, false); err != nil {
		t.Fatalf("DeleteBrainUsers failed: %v", err)
	}
	if _, err := store.GetBrainUser(ctx, owner, brainID); !errors.Is(err, storage.ErrBrainUserNotFound) {
		t.Fatalf("expected the owner record to be removed, got %v", err)
	}
}

func TestSecretValues(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	userID := uuid.New()
	brainID := uuid.New()

	if err := store.UpdateSecretValue(ctx, userID, brainID, "token", "s3cret"); err != nil {
		t.Fatalf("UpdateSecretValue failed: %v", err)
	}
	value, err := store.GetSecretValue(ctx, userID, brainID, "token")
	if err != nil {
		t.Fatalf("GetSecretValue failed: %v", err)
	}
	if value != "s3cret" {
		t.Fatalf("expected stored secret, got %q", value)
	}

	other, err := store.GetSecretValue(ctx, uuid.New(), brainID, "token")
	if err != nil {
		t.Fatalf("GetSecretValue failed: %v", err)
	}
	if other != "" {
		t.Fatalf("expected no secret for another user, got %q", other)
	}
}

func TestIncrementDailyRequestCount(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	userID := uuid.New()

	for want := int64(1); want <= 3; want++ {
		count, err := store.IncrementDailyRequestCount(ctx, userID, "20260901")
		if err != nil {
			t.Fatalf("IncrementDailyRequestCount failed: %v", err)
		}
		if count != want {
			t.Fatalf("expected count %d, got %d", want, count)
		}
	}

	count, err := store.IncrementDailyRequestCount(ctx, userID, "20260902")
	if err != nil {
		t.Fatalf("IncrementDailyRequestCount failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a fresh count for a new day, got %d", count)
	}
}
