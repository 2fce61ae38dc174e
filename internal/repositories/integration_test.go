//go:build integration

package repositories_test

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/keystone-market/backend/internal/db"
	"github.com/keystone-market/backend/internal/models"
	"github.com/keystone-market/backend/internal/repositories"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()

	dsn := os.Getenv("POSTGRES_URL")
	var terminate func()
	if dsn == "" {
		ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
			tcpostgres.WithDatabase("keystone_test"),
			tcpostgres.WithUsername("keystone"),
			tcpostgres.WithPassword("keystone"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).WithStartupTimeout(60*time.Second)),
		)
		if err != nil {
			log.Fatalf("start postgres container: %v", err)
		}
		terminate = func() { _ = testcontainers.TerminateContainer(ctr) }

		dsn, err = ctr.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			terminate()
			log.Fatalf("container connection string: %v", err)
		}
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("connect to postgres: %v", err)
	}
	if err := db.RunMigrations(ctx, pool, "../../migrations", zap.NewNop()); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}
	testPool = pool

	code := m.Run()

	pool.Close()
	if terminate != nil {
		terminate()
	}
	os.Exit(code)
}

func seedSeller(t *testing.T) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := testPool.Exec(context.Background(),
		`INSERT INTO sellers (id, display_name) VALUES ($1, $2)`, id, "seller "+id.String()[:8])
	require.NoError(t, err)
	return id
}

func seedProduct(t *testing.T, sellerID uuid.UUID) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := testPool.Exec(context.Background(),
		`INSERT INTO products (id, seller_id, title, price_cents) VALUES ($1, $2, $3, $4)`,
		id, sellerID, "test product", int64(5000))
	require.NoError(t, err)
	return id
}

func seedOrder(t *testing.T, productID, sellerID uuid.UUID, status string, amountCents int64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := testPool.Exec(context.Background(),
		`INSERT INTO orders (id, product_id, seller_id, buyer_id, amount_cents, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, productID, sellerID, uuid.New(), amountCents, status)
	require.NoError(t, err)
	return id
}

func sellerBalances(t *testing.T, sellerID uuid.UUID) (frozen, available int64) {
	t.Helper()
	err := testPool.QueryRow(context.Background(),
		`SELECT balance_frozen, balance_available FROM sellers WHERE id = $1`, sellerID).
		Scan(&frozen, &available)
	require.NoError(t, err)
	return frozen, available
}

// Many claimers, few credentials: every credential is handed out exactly once
// and the rest of the claimers see out-of-stock.
func TestReserveConcurrentSingleWinnerPerCredential(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewCredentialRepo(testPool)
	sellerID := seedSeller(t)
	productID := seedProduct(t, sellerID)

	added, err := repo.Add(ctx, productID, []string{"key-1", "key-2", "key-3"}, nil)
	require.NoError(t, err)
	require.Equal(t, 3, added)

	const claimers = 8
	var (
		mu         sync.Mutex
		won        = map[uuid.UUID]bool{}
		outOfStock int32
		wg         sync.WaitGroup
	)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cred, err := repo.Reserve(ctx, productID, uuid.New(), nil)
			if errors.Is(err, models.ErrOutOfStock) {
				atomic.AddInt32(&outOfStock, 1)
				return
			}
			if err != nil {
				t.Errorf("reserve: %v", err)
				return
			}
			mu.Lock()
			won[cred.ID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, won, 3, "each credential must have exactly one winner")
	require.EqualValues(t, claimers-3, outOfStock)

	remaining, err := repo.CountAvailable(ctx, productID, nil)
	require.NoError(t, err)
	require.Zero(t, remaining)
}

// Retried payment webhooks land on the unique order_id: the second create is
// a no-op that reports the existing transaction and the seller's frozen
// balance moves once.
func TestCreateFrozenDuplicateIsNoOp(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewEscrowRepo(testPool)
	sellerID := seedSeller(t)
	productID := seedProduct(t, sellerID)
	orderID := seedOrder(t, productID, sellerID, models.OrderStatusPaid, 5000)
	releaseAt := time.Now().Add(72 * time.Hour)

	first, created, err := repo.CreateFrozen(ctx, orderID, sellerID, 5000, releaseAt)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := repo.CreateFrozen(ctx, orderID, sellerID, 5000, releaseAt)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)

	frozen, _ := sellerBalances(t, sellerID)
	require.EqualValues(t, 5000, frozen)
}

// frozen -> released and frozen -> refunded compete for the same guard;
// exactly one side wins and the balance moves exactly once.
func TestReleaseRefundSingleWinner(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewEscrowRepo(testPool)
	sellerID := seedSeller(t)
	productID := seedProduct(t, sellerID)
	orderID := seedOrder(t, productID, sellerID, models.OrderStatusPaid, 5000)

	_, created, err := repo.CreateFrozen(ctx, orderID, sellerID, 5000, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.True(t, created)

	var (
		wg         sync.WaitGroup
		releaseErr error
		refundErr  error
	)
	wg.Add(2)
	go func() { defer wg.Done(); _, releaseErr = repo.Release(ctx, orderID) }()
	go func() { defer wg.Done(); _, refundErr = repo.Refund(ctx, orderID) }()
	wg.Wait()

	require.NotEqual(t, releaseErr == nil, refundErr == nil,
		"exactly one of release/refund must win: release=%v refund=%v", releaseErr, refundErr)

	frozen, available := sellerBalances(t, sellerID)
	require.Zero(t, frozen)
	if releaseErr == nil {
		require.ErrorIs(t, refundErr, models.ErrInvalidState)
		require.EqualValues(t, 5000, available)
	} else {
		require.ErrorIs(t, releaseErr, models.ErrInvalidState)
		require.Zero(t, available)
	}
}

func TestResolveDuplicateRejected(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewDisputeRepo(testPool)
	sellerID := seedSeller(t)
	productID := seedProduct(t, sellerID)
	orderID := seedOrder(t, productID, sellerID, models.OrderStatusDelivered, 5000)

	d := &models.Dispute{
		OrderID:  orderID,
		BuyerID:  uuid.New(),
		SellerID: sellerID,
		Reason:   models.DisputeReasonCredentialInvalid,
		Status:   models.DisputeStatusOpen,
	}
	require.NoError(t, repo.Create(ctx, d))

	admin := uuid.New()
	resolved, err := repo.Resolve(ctx, d.ID, models.ResolutionBuyerWin, admin)
	require.NoError(t, err)
	require.Equal(t, models.DisputeStatusResolved, resolved.Status)

	_, err = repo.Resolve(ctx, d.ID, models.ResolutionSellerWin, admin)
	require.ErrorIs(t, err, models.ErrInvalidState)

	kept, err := repo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	require.NotNil(t, kept.Resolution)
	require.Equal(t, models.ResolutionBuyerWin, *kept.Resolution)
}

func TestSecondOpenDisputePerOrderRejected(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewDisputeRepo(testPool)
	sellerID := seedSeller(t)
	productID := seedProduct(t, sellerID)
	orderID := seedOrder(t, productID, sellerID, models.OrderStatusDelivered, 5000)
	buyerID := uuid.New()

	first := &models.Dispute{
		OrderID: orderID, BuyerID: buyerID, SellerID: sellerID,
		Reason: models.DisputeReasonNotAsDescribed, Status: models.DisputeStatusOpen,
	}
	require.NoError(t, repo.Create(ctx, first))

	second := &models.Dispute{
		OrderID: orderID, BuyerID: buyerID, SellerID: sellerID,
		Reason: models.DisputeReasonOther, Status: models.DisputeStatusOpen,
	}
	require.ErrorIs(t, repo.Create(ctx, second), models.ErrConflict)
}

// An order under an open dispute never shows up in the release pass feed; it
// reappears once the dispute reaches a terminal state.
func TestDueForReleaseSkipsDisputedOrders(t *testing.T) {
	ctx := context.Background()
	escrowRepo := repositories.NewEscrowRepo(testPool)
	disputeRepo := repositories.NewDisputeRepo(testPool)
	sellerID := seedSeller(t)
	productID := seedProduct(t, sellerID)
	orderID := seedOrder(t, productID, sellerID, models.OrderStatusDelivered, 5000)

	_, created, err := escrowRepo.CreateFrozen(ctx, orderID, sellerID, 5000, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, created)

	d := &models.Dispute{
		OrderID:  orderID,
		BuyerID:  uuid.New(),
		SellerID: sellerID,
		Reason:   models.DisputeReasonNotReceived,
		Status:   models.DisputeStatusOpen,
	}
	require.NoError(t, disputeRepo.Create(ctx, d))

	contains := func(txs []models.EscrowTransaction) bool {
		for _, tx := range txs {
			if tx.OrderID == orderID {
				return true
			}
		}
		return false
	}

	due, err := escrowRepo.DueForRelease(ctx, time.Now(), 1000)
	require.NoError(t, err)
	require.False(t, contains(due), "disputed order must not be due for release")

	_, err = disputeRepo.Resolve(ctx, d.ID, models.ResolutionSellerWin, uuid.New())
	require.NoError(t, err)

	due, err = escrowRepo.DueForRelease(ctx, time.Now(), 1000)
	require.NoError(t, err)
	require.True(t, contains(due), "resolved dispute must unblock the release")
}

func TestMarkPaidIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewOrderRepo(testPool)
	sellerID := seedSeller(t)
	productID := seedProduct(t, sellerID)
	orderID := seedOrder(t, productID, sellerID, models.OrderStatusPending, 5000)

	changed, err := repo.MarkPaid(ctx, orderID)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = repo.MarkPaid(ctx, orderID)
	require.NoError(t, err)
	require.False(t, changed)

	order, err := repo.GetByID(ctx, orderID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusPaid, order.Status)
}
