package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"realtime-backend/internal/apperr"
	"realtime-backend/internal/models"
	"realtime-backend/internal/services"
	"realtime-backend/internal/services/mocks"
	"realtime-backend/internal/store"
	"realtime-backend/internal/store/memory"

	"github.com/golang/mock/gomock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice = 1
	bob   = 2
	carol = 3
)

func newMemoryStore() *memory.Store {
	s := memory.New()
	s.AddUser(alice, "Alice")
	s.AddUser(bob, "Bob")
	s.AddUser(carol, "Carol")
	return s
}

func newChatService(t *testing.T) (*services.ChatService, *memory.Store) {
	t.Helper()
	s := newMemoryStore()
	return services.NewChatService(s, s, zerolog.Nop()), s
}

func strPtr(s string) *string { return &s }

func TestChatService_GetOrCreateConversation(t *testing.T) {
	ctx := context.Background()

	t.Run("self conversation is rejected", func(t *testing.T) {
		svc, _ := newChatService(t)
		_, err := svc.GetOrCreateConversation(ctx, alice, alice)
		assert.ErrorIs(t, err, apperr.ErrSelfConversation)
		assert.Equal(t, apperr.CodeInvalidArgument, apperr.CodeOf(err))
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, _ := newChatService(t)
		_, err := svc.GetOrCreateConversation(ctx, alice, 99)
		assert.ErrorIs(t, err, apperr.ErrUserNotFound)
	})

	t.Run("either order yields the same canonical conversation", func(t *testing.T) {
		svc, _ := newChatService(t)
		first, err := svc.GetOrCreateConversation(ctx, bob, alice)
		require.NoError(t, err)
		assert.Equal(t, alice, first.User1ID)
		assert.Equal(t, bob, first.User2ID)

		second, err := svc.GetOrCreateConversation(ctx, alice, bob)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("concurrent first contact converges on one conversation", func(t *testing.T) {
		svc, s := newChatService(t)
		var wg sync.WaitGroup
		ids := make([]int, 10)
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				a, b := alice, bob
				if i%2 == 1 {
					a, b = bob, alice
				}
				conv, err := svc.GetOrCreateConversation(ctx, a, b)
				if assert.NoError(t, err) {
					ids[i] = conv.ID
				}
			}(i)
		}
		wg.Wait()
		for _, id := range ids {
			assert.Equal(t, ids[0], id)
		}
		list, err := s.ListConversations(ctx, alice)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("losing the insert race reads the winner", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		chats := mocks.NewMockChatStore(ctrl)
		users := mocks.NewMockUserDirectory(ctrl)
		svc := services.NewChatService(chats, users, zerolog.Nop())

		winner := &models.Conversation{ID: 7, User1ID: alice, User2ID: bob}
		users.EXPECT().Exists(gomock.Any(), bob).Return(true, nil)
		gomock.InOrder(
			chats.EXPECT().FindConversationByPair(gomock.Any(), alice, bob).Return(nil, store.ErrNotFound),
			chats.EXPECT().CreateConversation(gomock.Any(), alice, bob).Return(nil, store.ErrDuplicate),
			chats.EXPECT().FindConversationByPair(gomock.Any(), alice, bob).Return(winner, nil),
		)

		conv, err := svc.GetOrCreateConversation(ctx, alice, bob)
		require.NoError(t, err)
		assert.Equal(t, 7, conv.ID)
	})

	t.Run("directory failure is internal", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		users := mocks.NewMockUserDirectory(ctrl)
		svc := services.NewChatService(mocks.NewMockChatStore(ctrl), users, zerolog.Nop())

		users.EXPECT().Exists(gomock.Any(), bob).Return(false, errors.New("connection refused"))
		_, err := svc.GetOrCreateConversation(ctx, alice, bob)
		assert.Equal(t, apperr.CodeInternal, apperr.CodeOf(err))
	})
}

func TestChatService_SendMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("persists trimmed content", func(t *testing.T) {
		svc, _ := newChatService(t)
		conv, err := svc.GetOrCreateConversation(ctx, alice, bob)
		require.NoError(t, err)

		msg, err := svc.SendMessage(ctx, conv.ID, alice, "  hello  ", nil)
		require.NoError(t, err)
		assert.NotZero(t, msg.ID)
		assert.Equal(t, "hello", msg.Content)
		assert.Equal(t, conv.ID, msg.ConversationID)
		assert.False(t, msg.IsRead)
		assert.Equal(t, "UTC", msg.CreatedAt.Location().String())
	})

	t.Run("attachment only is accepted", func(t *testing.T) {
		svc, _ := newChatService(t)
		conv, _ := svc.GetOrCreateConversation(ctx, alice, bob)

		msg, err := svc.SendMessage(ctx, conv.ID, bob, "", strPtr("https://cdn.example/cat.png"))
		require.NoError(t, err)
		require.NotNil(t, msg.Attachment)
		assert.Equal(t, "https://cdn.example/cat.png", *msg.Attachment)
	})

	t.Run("empty message persists nothing", func(t *testing.T) {
		svc, s := newChatService(t)
		conv, _ := svc.GetOrCreateConversation(ctx, alice, bob)

		_, err := svc.SendMessage(ctx, conv.ID, alice, "   ", strPtr(" "))
		assert.ErrorIs(t, err, apperr.ErrEmptyMessage)

		msgs, err := s.ListMessages(ctx, conv.ID, 10, 0)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("non participant is forbidden", func(t *testing.T) {
		svc, _ := newChatService(t)
		conv, _ := svc.GetOrCreateConversation(ctx, alice, bob)

		_, err := svc.SendMessage(ctx, conv.ID, carol, "hi", nil)
		assert.ErrorIs(t, err, apperr.ErrNotParticipant)
		assert.Equal(t, apperr.CodePermissionDenied, apperr.CodeOf(err))
	})

	t.Run("unknown conversation", func(t *testing.T) {
		svc, _ := newChatService(t)
		_, err := svc.SendMessage(ctx, 404, alice, "hi", nil)
		assert.ErrorIs(t, err, apperr.ErrConversationNotFound)
	})
}

func TestChatService_SendDirectMessage(t *testing.T) {
	ctx := context.Background()
	svc, _ := newChatService(t)

	msg, conv, err := svc.SendDirectMessage(ctx, bob, alice, "first", nil)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, msg.ConversationID)

	_, again, err := svc.SendDirectMessage(ctx, alice, bob, "reply", nil)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)

	_, _, err = svc.SendDirectMessage(ctx, alice, carol, "", nil)
	assert.ErrorIs(t, err, apperr.ErrEmptyMessage)
	list, err := svc.ListConversations(ctx, carol)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestChatService_ReadAndList(t *testing.T) {
	ctx := context.Background()
	svc, _ := newChatService(t)
	conv, _ := svc.GetOrCreateConversation(ctx, alice, bob)

	for _, text := range []string{"one", "two", "three"} {
		_, err := svc.SendMessage(ctx, conv.ID, alice, text, nil)
		require.NoError(t, err)
	}
	_, err := svc.SendMessage(ctx, conv.ID, bob, "four", nil)
	require.NoError(t, err)

	summaries, err := svc.ListConversations(ctx, bob)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 3, summaries[0].UnreadCount)
	require.NotNil(t, summaries[0].LastMessage)
	assert.Equal(t, "four", summaries[0].LastMessage.Content)

	page, err := svc.ListMessages(ctx, conv.ID, bob, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "three", page[0].Content)
	assert.Equal(t, "four", page[1].Content)

	older, err := svc.ListMessages(ctx, conv.ID, bob, 0, page[0].ID)
	require.NoError(t, err)
	require.Len(t, older, 2)
	assert.Equal(t, "one", older[0].Content)

	_, err = svc.ListMessages(ctx, conv.ID, carol, 10, 0)
	assert.ErrorIs(t, err, apperr.ErrNotParticipant)

	n, err := svc.MarkRead(ctx, conv.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = svc.MarkRead(ctx, conv.ID, bob)
	require.NoError(t, err)
	assert.Zero(t, n)

	detail, err := svc.GetConversationDetail(ctx, conv.ID, alice)
	require.NoError(t, err)
	assert.Len(t, detail.Messages, 4)
	for _, m := range detail.Messages {
		if m.SenderID == alice {
			assert.True(t, m.IsRead)
		} else {
			assert.False(t, m.IsRead)
		}
	}
}

func TestChatService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("only the sender deletes a message", func(t *testing.T) {
		svc, _ := newChatService(t)
		conv, _ := svc.GetOrCreateConversation(ctx, alice, bob)
		msg, err := svc.SendMessage(ctx, conv.ID, alice, "oops", nil)
		require.NoError(t, err)

		assert.ErrorIs(t, svc.DeleteMessage(ctx, msg.ID, bob), apperr.ErrForbidden)
		require.NoError(t, svc.DeleteMessage(ctx, msg.ID, alice))
		assert.ErrorIs(t, svc.DeleteMessage(ctx, msg.ID, alice), apperr.ErrMessageNotFound)
	})

	t.Run("conversation delete removes messages", func(t *testing.T) {
		svc, s := newChatService(t)
		conv, _ := svc.GetOrCreateConversation(ctx, alice, bob)
		msg, err := svc.SendMessage(ctx, conv.ID, bob, "bye", nil)
		require.NoError(t, err)

		assert.ErrorIs(t, svc.DeleteConversation(ctx, conv.ID, carol), apperr.ErrForbidden)
		require.NoError(t, svc.DeleteConversation(ctx, conv.ID, alice))

		_, err = s.GetMessage(ctx, msg.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = svc.GetConversation(ctx, conv.ID, alice)
		assert.ErrorIs(t, err, apperr.ErrConversationNotFound)
	})
}
