package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgpub/internal/config"
	"imgpub/internal/domain/models"
	"imgpub/internal/mocks"
	"imgpub/internal/services"
	"imgpub/internal/storage"
)

const target = "https://dweb.link/ipfs/bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"

func prepareLinkService(t *testing.T) (services.LinkService, *mocks.MockLinkStore, *mocks.MockLinkTx) {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockLinkStore(ctrl)
	tx := mocks.NewMockLinkTx(ctrl)
	return services.NewLinkService(config.NewConfig(), store, nil), store, tx
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		name      string
		mockSetup func(store *mocks.MockLinkStore, tx *mocks.MockLinkTx)
		wantErr   error
	}{
		{
			name: "first code is free",
			mockSetup: func(store *mocks.MockLinkStore, tx *mocks.MockLinkTx) {
				store.EXPECT().BeginTx(gomock.Any()).Return(tx, nil)
				tx.EXPECT().CodeExists(gomock.Any(), gomock.Any()).Return(false, nil)
				tx.EXPECT().InsertLink(gomock.Any(), gomock.Any()).Return(true, nil)
				tx.EXPECT().Commit().Return(nil)
			},
		},
		{
			name: "collisions are retried",
			mockSetup: func(store *mocks.MockLinkStore, tx *mocks.MockLinkTx) {
				store.EXPECT().BeginTx(gomock.Any()).Return(tx, nil)
				gomock.InOrder(
					tx.EXPECT().CodeExists(gomock.Any(), gomock.Any()).Return(true, nil).Times(3),
					tx.EXPECT().CodeExists(gomock.Any(), gomock.Any()).Return(false, nil),
				)
				tx.EXPECT().InsertLink(gomock.Any(), gomock.Any()).Return(true, nil)
				tx.EXPECT().Commit().Return(nil)
			},
		},
		{
			name: "conflicting insert counts as a collision",
			mockSetup: func(store *mocks.MockLinkStore, tx *mocks.MockLinkTx) {
				store.EXPECT().BeginTx(gomock.Any()).Return(tx, nil)
				tx.EXPECT().CodeExists(gomock.Any(), gomock.Any()).Return(false, nil).Times(2)
				gomock.InOrder(
					tx.EXPECT().InsertLink(gomock.Any(), gomock.Any()).Return(false, nil),
					tx.EXPECT().InsertLink(gomock.Any(), gomock.Any()).Return(true, nil),
				)
				tx.EXPECT().Commit().Return(nil)
			},
		},
		{
			name: "exhausted after bounded attempts",
			mockSetup: func(store *mocks.MockLinkStore, tx *mocks.MockLinkTx) {
				store.EXPECT().BeginTx(gomock.Any()).Return(tx, nil)
				tx.EXPECT().CodeExists(gomock.Any(), gomock.Any()).Return(true, nil).Times(services.MaxAllocationAttempts)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: services.ErrAllocationExhausted,
		},
		{
			name: "storage error rolls back",
			mockSetup: func(store *mocks.MockLinkStore, tx *mocks.MockLinkTx) {
				store.EXPECT().BeginTx(gomock.Any()).Return(tx, nil)
				tx.EXPECT().CodeExists(gomock.Any(), gomock.Any()).Return(false, storage.ErrNotConnected)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: storage.ErrNotConnected,
		},
		{
			name: "commit failure",
			mockSetup: func(store *mocks.MockLinkStore, tx *mocks.MockLinkTx) {
				store.EXPECT().BeginTx(gomock.Any()).Return(tx, nil)
				tx.EXPECT().CodeExists(gomock.Any(), gomock.Any()).Return(false, nil)
				tx.EXPECT().InsertLink(gomock.Any(), gomock.Any()).Return(true, nil)
				tx.EXPECT().Commit().Return(storage.ErrTxDone)
				tx.EXPECT().Rollback().Return(storage.ErrTxDone)
			},
			wantErr: storage.ErrTxDone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, store, tx := prepareLinkService(t)
			tt.mockSetup(store, tx)

			shortURL, err := service.Allocate(context.Background(), target, "owner-1", "alice")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, shortURL)
				return
			}
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(shortURL, "http://localhost:8080/s/"))
		})
	}
}

func TestAllocateStoresOwner(t *testing.T) {
	service, store, tx := prepareLinkService(t)

	var stored models.ShortLink
	store.EXPECT().BeginTx(gomock.Any()).Return(tx, nil)
	tx.EXPECT().CodeExists(gomock.Any(), gomock.Any()).Return(false, nil)
	tx.EXPECT().InsertLink(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, link models.ShortLink) (bool, error) {
			stored = link
			return true, nil
		})
	tx.EXPECT().Commit().Return(nil)

	shortURL, err := service.Allocate(context.Background(), target, "owner-1", "alice")
	require.NoError(t, err)

	assert.Equal(t, target, stored.Target)
	assert.Equal(t, "owner-1", stored.OwnerID)
	assert.Equal(t, "alice", stored.OwnerLabel)
	assert.Equal(t, service.ShortURL(stored.Code), shortURL)
	assert.True(t, services.ValidCode(stored.Code))
}

func TestAllocateRejectsInvalidTarget(t *testing.T) {
	service, _, _ := prepareLinkService(t)

	for _, bad := range []string{"", "ftp://example.com/a", "/relative/path", "https://"} {
		_, err := service.Allocate(context.Background(), bad, "", "")
		assert.ErrorIs(t, err, services.ErrInvalidTarget, bad)
	}
}

func TestAllocateConcurrentCodesAreUnique(t *testing.T) {
	conf := config.NewConfig()
	conf.CodeLength = 4
	store := storage.NewStorageMemory()
	service := services.NewLinkService(conf, store, nil)

	const n = 200
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		urls = make(map[string]struct{}, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			shortURL, err := service.Allocate(context.Background(), fmt.Sprintf("%s?n=%d", target, i), "", "")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			urls[shortURL] = struct{}{}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Len(t, urls, n)
	links, err := store.AllLinks(context.Background())
	require.NoError(t, err)
	assert.Len(t, links, n)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		mockSetup func(store *mocks.MockLinkStore)
		want      string
		wantErr   error
	}{
		{
			name: "found",
			code: "abc123",
			mockSetup: func(store *mocks.MockLinkStore) {
				store.EXPECT().FindLink(gomock.Any(), "abc123").Return(models.ShortLink{Code: "abc123", Target: target}, nil)
			},
			want: target,
		},
		{
			name: "missing",
			code: "abc123",
			mockSetup: func(store *mocks.MockLinkStore) {
				store.EXPECT().FindLink(gomock.Any(), "abc123").Return(models.ShortLink{}, storage.ErrNotFound)
			},
			wantErr: services.ErrNotFound,
		},
		{
			name:      "malformed code never reaches storage",
			code:      "../etc",
			mockSetup: func(*mocks.MockLinkStore) {},
			wantErr:   services.ErrInvalidCode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, store, _ := prepareLinkService(t)
			tt.mockSetup(store)

			got, err := service.Resolve(context.Background(), tt.code)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListByOwner(t *testing.T) {
	service, store, _ := prepareLinkService(t)

	store.EXPECT().ListLinksByOwner(gomock.Any(), "owner-1", 20, 20).
		Return([]models.ShortLink{{Code: "abc123", Target: target}}, 21, nil)

	page, err := service.ListByOwner(context.Background(), "owner-1", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.Equal(t, 21, page.Total)
	assert.Len(t, page.Links, 1)

	_, err = service.ListByOwner(context.Background(), "", 1, 10)
	assert.ErrorIs(t, err, services.ErrUnauthorized)
}

func TestBatchDelete(t *testing.T) {
	store := storage.NewStorageMemory()
	service := services.NewLinkService(config.NewConfig(), store, nil)
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	for _, link := range []models.ShortLink{
		{Code: "aaaa11", Target: target, OwnerID: "owner-1"},
		{Code: "bbbb22", Target: target, OwnerID: "owner-1"},
		{Code: "cccc33", Target: target, OwnerID: "owner-2"},
	} {
		ok, err := tx.InsertLink(ctx, link)
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.NoError(t, tx.Commit())

	n, err := service.BatchDelete(ctx, []string{"aaaa11", "bbbb22", "cccc33", "dddd44"}, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = store.FindLink(ctx, "cccc33")
	assert.NoError(t, err)

	_, err = service.BatchDelete(ctx, []string{"cccc33", "bad code"}, "owner-2")
	assert.ErrorIs(t, err, services.ErrInvalidCode)
	_, err = store.FindLink(ctx, "cccc33")
	assert.NoError(t, err)
}

func TestExportAllSkipsMalformedCodes(t *testing.T) {
	service, store, _ := prepareLinkService(t)

	store.EXPECT().AllLinks(gomock.Any()).Return([]models.ShortLink{
		{Code: "abc123", Target: target},
		{Code: "a/b", Target: target},
	}, nil)

	links, err := service.ExportAll(context.Background())
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "abc123", links[0].Code)
}

func TestPing(t *testing.T) {
	service, store, _ := prepareLinkService(t)

	store.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))
	assert.Error(t, service.Ping(context.Background()))
}

func TestGenerateCode(t *testing.T) {
	for _, n := range []int{4, 6, 12, 32} {
		code, err := services.GenerateCode(n)
		require.NoError(t, err)
		assert.Len(t, code, n)
		assert.True(t, services.ValidCode(code), code)
	}
}
