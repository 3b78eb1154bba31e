package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dialcoach/partner-api/internal/data"
	"github.com/dialcoach/partner-api/internal/domain/model"
	apperrors "github.com/dialcoach/partner-api/internal/errors"
	"github.com/dialcoach/partner-api/internal/mocks"
	"go.uber.org/mock/gomock"
)

type recordingInvalidator struct {
	keyIDs []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, keyID string) {
	r.keyIDs = append(r.keyIDs, keyID)
}

func TestNewPartnerKeyService(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	t.Run("success", func(t *testing.T) {
		svc, err := NewPartnerKeyService(PartnerKeyServiceOptions{
			Repo:   mocks.NewMockPartnerKeyRepository(ctrl),
			Config: testPartnerAuthConfig(),
		})
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("missing repo", func(t *testing.T) {
		svc, err := NewPartnerKeyService(PartnerKeyServiceOptions{
			Config: testPartnerAuthConfig(),
		})
		require.Error(t, err)
		assert.Nil(t, svc)
	})
}

func TestPartnerKeyService_Mint(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := mocks.NewMockPartnerKeyRepository(ctrl)
		repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, key *model.PartnerKey) (*model.PartnerKey, error) {
				created := *key
				created.ID = "row-1"
				created.CreatedAt = time.Now()
				return &created, nil
			})

		svc := MustNewPartnerKeyService(PartnerKeyServiceOptions{
			Repo:   repo,
			Config: testPartnerAuthConfig(),
		})

		minted, err := svc.Mint(context.Background(), &model.MintKeyRequest{
			PartnerName: "Acme CRM",
			Environment: model.EnvironmentTest,
		})
		require.NoError(t, err)

		assert.Equal(t, "pk_test_"+minted.Key.KeyID, minted.APIKey)
		_, parseErr := uuid.Parse(minted.Key.KeyID)
		assert.NoError(t, parseErr, "key id is a uuid")
		assert.Len(t, minted.APISecret, 64, "32 bytes of entropy, hex encoded")
		assert.Len(t, minted.WebhookSecret, 64)
		assert.NotEqual(t, minted.APISecret, minted.WebhookSecret)
		assert.True(t, minted.Key.IsActive)
		assert.Equal(t, 60, minted.Key.RateLimitPerMinute, "default rate limit applies")

		// The stored hash must verify against the returned plaintext secret.
		assert.NoError(t, bcrypt.CompareHashAndPassword(
			[]byte(minted.Key.SecretHash), []byte(minted.APISecret)))
	})

	t.Run("explicit rate limit is kept", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := mocks.NewMockPartnerKeyRepository(ctrl)
		repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, key *model.PartnerKey) (*model.PartnerKey, error) {
				return key, nil
			})

		svc := MustNewPartnerKeyService(PartnerKeyServiceOptions{
			Repo:   repo,
			Config: testPartnerAuthConfig(),
		})

		minted, err := svc.Mint(context.Background(), &model.MintKeyRequest{
			PartnerName:        "Acme CRM",
			Environment:        model.EnvironmentLive,
			RateLimitPerMinute: 240,
		})
		require.NoError(t, err)
		assert.Equal(t, 240, minted.Key.RateLimitPerMinute)
		assert.Equal(t, "pk_live_"+minted.Key.KeyID, minted.APIKey)
	})

	t.Run("nil request", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc := MustNewPartnerKeyService(PartnerKeyServiceOptions{
			Repo:   mocks.NewMockPartnerKeyRepository(ctrl),
			Config: testPartnerAuthConfig(),
		})

		_, err := svc.Mint(context.Background(), nil)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("invalid request", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc := MustNewPartnerKeyService(PartnerKeyServiceOptions{
			Repo:   mocks.NewMockPartnerKeyRepository(ctrl),
			Config: testPartnerAuthConfig(),
		})

		_, err := svc.Mint(context.Background(), &model.MintKeyRequest{
			Environment: model.EnvironmentTest,
		})
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestPartnerKeyService_Get(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := mocks.NewMockPartnerKeyRepository(ctrl)
		repo.EXPECT().GetByID(gomock.Any(), "row-1").
			Return(&model.PartnerKey{ID: "row-1", PartnerName: "Acme CRM"}, nil)

		svc := MustNewPartnerKeyService(PartnerKeyServiceOptions{
			Repo:   repo,
			Config: testPartnerAuthConfig(),
		})

		key, err := svc.Get(context.Background(), "row-1")
		require.NoError(t, err)
		assert.Equal(t, "Acme CRM", key.PartnerName)
	})

	t.Run("not found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := mocks.NewMockPartnerKeyRepository(ctrl)
		repo.EXPECT().GetByID(gomock.Any(), "missing").Return(nil, data.ErrPartnerKeyNotFound)

		svc := MustNewPartnerKeyService(PartnerKeyServiceOptions{
			Repo:   repo,
			Config: testPartnerAuthConfig(),
		})

		_, err := svc.Get(context.Background(), "missing")
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestPartnerKeyService_Revoke(t *testing.T) {
	t.Run("success evicts the cached credential", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := mocks.NewMockPartnerKeyRepository(ctrl)
		repo.EXPECT().GetByID(gomock.Any(), "row-1").
			Return(&model.PartnerKey{ID: "row-1", KeyID: "abc123", IsActive: true}, nil)
		repo.EXPECT().Revoke(gomock.Any(), "row-1").Return(true, nil)

		invalidator := &recordingInvalidator{}
		svc := MustNewPartnerKeyService(PartnerKeyServiceOptions{
			Repo:        repo,
			Config:      testPartnerAuthConfig(),
			Invalidator: invalidator,
		})

		require.NoError(t, svc.Revoke(context.Background(), "row-1"))
		assert.Equal(t, []string{"abc123"}, invalidator.keyIDs)
	})

	t.Run("already revoked", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := mocks.NewMockPartnerKeyRepository(ctrl)
		repo.EXPECT().GetByID(gomock.Any(), "row-1").
			Return(&model.PartnerKey{ID: "row-1", KeyID: "abc123"}, nil)
		repo.EXPECT().Revoke(gomock.Any(), "row-1").Return(false, nil)

		svc := MustNewPartnerKeyService(PartnerKeyServiceOptions{
			Repo:   repo,
			Config: testPartnerAuthConfig(),
		})

		err := svc.Revoke(context.Background(), "row-1")
		assert.True(t, apperrors.IsConflict(err))
	})

	t.Run("not found", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := mocks.NewMockPartnerKeyRepository(ctrl)
		repo.EXPECT().GetByID(gomock.Any(), "missing").Return(nil, data.ErrPartnerKeyNotFound)

		svc := MustNewPartnerKeyService(PartnerKeyServiceOptions{
			Repo:   repo,
			Config: testPartnerAuthConfig(),
		})

		err := svc.Revoke(context.Background(), "missing")
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("repo error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := mocks.NewMockPartnerKeyRepository(ctrl)
		repo.EXPECT().GetByID(gomock.Any(), "row-1").
			Return(&model.PartnerKey{ID: "row-1"}, nil)
		repo.EXPECT().Revoke(gomock.Any(), "row-1").Return(false, errors.New("db down"))

		svc := MustNewPartnerKeyService(PartnerKeyServiceOptions{
			Repo:   repo,
			Config: testPartnerAuthConfig(),
		})

		err := svc.Revoke(context.Background(), "row-1")
		require.Error(t, err)
		assert.False(t, apperrors.IsConflict(err))
	})
}

func TestPartnerKeyService_List(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockPartnerKeyRepository(ctrl)
	repo.EXPECT().List(gomock.Any()).Return([]model.PartnerKey{
		{ID: "row-2"},
		{ID: "row-1"},
	}, nil)

	svc := MustNewPartnerKeyService(PartnerKeyServiceOptions{
		Repo:   repo,
		Config: testPartnerAuthConfig(),
	})

	keys, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "row-2", keys[0].ID)
}
