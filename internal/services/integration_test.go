//go:build integration

package services_test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/keystone-market/backend/internal/config"
	"github.com/keystone-market/backend/internal/db"
	"github.com/keystone-market/backend/internal/events"
	"github.com/keystone-market/backend/internal/models"
	"github.com/keystone-market/backend/internal/repositories"
	"github.com/keystone-market/backend/internal/services"
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

type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, stream string, event events.Event) error {
	return nil
}

// env wires the real service graph against the test database. Bridge clients
// point at an unreachable address; their failures are logged and swallowed,
// which is exactly the production contract.
type env struct {
	orderRepo   *repositories.OrderRepo
	escrowRepo  *repositories.EscrowRepo
	sellerRepo  *repositories.SellerRepo
	disputeRepo *repositories.DisputeRepo
	escrow      *services.EscrowService
	disputes    *services.DisputeService
	scheduler   *services.Scheduler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	nop := zap.NewNop()
	cfg := &config.Config{
		DefaultEscrowDays:     3,
		DisputeSplitSellerBPS: 5000,
		DisputeStaleAfter:     72 * time.Hour,
		SchedulerBatchLimit:   500,
	}
	orderRepo := repositories.NewOrderRepo(testPool)
	escrowRepo := repositories.NewEscrowRepo(testPool)
	sellerRepo := repositories.NewSellerRepo(testPool)
	disputeRepo := repositories.NewDisputeRepo(testPool)
	auditRepo := repositories.NewAuditRepo(testPool)

	notify := services.NewNotifyClient("http://127.0.0.1:0", nop)
	refund := services.NewRefundClient("http://127.0.0.1:0", nop)

	escrow := services.NewEscrowService(orderRepo, escrowRepo, sellerRepo, auditRepo,
		refund, notify, nopPublisher{}, cfg, nop)
	disputes := services.NewDisputeService(orderRepo, disputeRepo, auditRepo,
		escrow, notify, nopPublisher{}, cfg, nop)
	scheduler := services.NewScheduler(escrow, disputes, disputeRepo, escrowRepo, cfg, nop)

	return &env{
		orderRepo:   orderRepo,
		escrowRepo:  escrowRepo,
		sellerRepo:  sellerRepo,
		disputeRepo: disputeRepo,
		escrow:      escrow,
		disputes:    disputes,
		scheduler:   scheduler,
	}
}

type fixture struct {
	sellerID uuid.UUID
	buyerID  uuid.UUID
	orderID  uuid.UUID
}

func seedOrder(t *testing.T, orderStatus string, amountCents int64) fixture {
	t.Helper()
	ctx := context.Background()
	sellerID, buyerID, productID, orderID := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	_, err := testPool.Exec(ctx,
		`INSERT INTO sellers (id, display_name) VALUES ($1, $2)`, sellerID, "seller "+sellerID.String()[:8])
	require.NoError(t, err)
	_, err = testPool.Exec(ctx,
		`INSERT INTO products (id, seller_id, title, price_cents) VALUES ($1, $2, $3, $4)`,
		productID, sellerID, "test product", amountCents)
	require.NoError(t, err)
	_, err = testPool.Exec(ctx,
		`INSERT INTO orders (id, product_id, seller_id, buyer_id, amount_cents, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		orderID, productID, sellerID, buyerID, amountCents, orderStatus)
	require.NoError(t, err)

	return fixture{sellerID: sellerID, buyerID: buyerID, orderID: orderID}
}

func openDispute(t *testing.T, e *env, f fixture, reason string) *models.Dispute {
	t.Helper()
	d := &models.Dispute{
		OrderID:  f.orderID,
		BuyerID:  f.buyerID,
		SellerID: f.sellerID,
		Reason:   reason,
		Status:   models.DisputeStatusOpen,
	}
	require.NoError(t, e.disputeRepo.Create(context.Background(), d))
	return d
}

func frozenEscrow(t *testing.T, e *env, f fixture, amountCents int64, releaseAt time.Time) {
	t.Helper()
	_, created, err := e.escrowRepo.CreateFrozen(context.Background(), f.orderID, f.sellerID, amountCents, releaseAt)
	require.NoError(t, err)
	require.True(t, created)
}

func TestResolveBuyerWinRefundsEscrow(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	f := seedOrder(t, models.OrderStatusDelivered, 5000)
	frozenEscrow(t, e, f, 5000, time.Now().Add(72*time.Hour))
	d := openDispute(t, e, f, models.DisputeReasonCredentialInvalid)

	admin := uuid.New()
	resolved, err := e.disputes.ResolveDispute(ctx, d.ID, models.ResolutionBuyerWin, "invalid key confirmed", admin)
	require.NoError(t, err)
	require.Equal(t, models.DisputeStatusResolved, resolved.Status)
	require.NotNil(t, resolved.Resolution)
	require.Equal(t, models.ResolutionBuyerWin, *resolved.Resolution)

	tx, err := e.escrowRepo.GetByOrderID(ctx, f.orderID)
	require.NoError(t, err)
	require.Equal(t, models.EscrowStatusRefunded, tx.Status)
	require.EqualValues(t, 5000, tx.RefundedCents)

	seller, err := e.sellerRepo.GetByID(ctx, f.sellerID)
	require.NoError(t, err)
	require.Zero(t, seller.Balance.FrozenCents)
	require.Equal(t, 1, seller.Stats.DisputesLost)

	order, err := e.orderRepo.GetByID(ctx, f.orderID)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusRefunded, order.Status)
}

// A buyer_win verdict whose refund cannot be applied (the escrow was already
// force-released to the seller) must not be recorded: the dispute stays open
// so an operator can retry or pick the verdict the money allows.
func TestResolveAfterForceReleaseLeavesDisputeOpen(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	f := seedOrder(t, models.OrderStatusDelivered, 5000)
	frozenEscrow(t, e, f, 5000, time.Now().Add(72*time.Hour))
	d := openDispute(t, e, f, models.DisputeReasonNotAsDescribed)

	_, err := e.escrowRepo.Release(ctx, f.orderID)
	require.NoError(t, err)

	_, err = e.disputes.ResolveDispute(ctx, d.ID, models.ResolutionBuyerWin, "", uuid.New())
	require.ErrorIs(t, err, models.ErrInvalidState)

	kept, err := e.disputeRepo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, models.DisputeStatusOpen, kept.Status)
	require.Nil(t, kept.Resolution)

	seller, err := e.sellerRepo.GetByID(ctx, f.sellerID)
	require.NoError(t, err)
	require.Zero(t, seller.Stats.DisputesLost)
}

// The symmetric case is fine: the escrow already settled in the verdict's
// direction, so seller_win records without moving funds again.
func TestResolveSellerWinAfterForceReleaseSucceeds(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	f := seedOrder(t, models.OrderStatusDelivered, 5000)
	frozenEscrow(t, e, f, 5000, time.Now().Add(72*time.Hour))
	d := openDispute(t, e, f, models.DisputeReasonOther)

	_, err := e.escrowRepo.Release(ctx, f.orderID)
	require.NoError(t, err)

	resolved, err := e.disputes.ResolveDispute(ctx, d.ID, models.ResolutionSellerWin, "", uuid.New())
	require.NoError(t, err)
	require.Equal(t, models.DisputeStatusResolved, resolved.Status)

	seller, err := e.sellerRepo.GetByID(ctx, f.sellerID)
	require.NoError(t, err)
	require.EqualValues(t, 5000, seller.Balance.AvailableCents)
}

func TestResolveSplitConservesAmount(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	f := seedOrder(t, models.OrderStatusDelivered, 101)
	frozenEscrow(t, e, f, 101, time.Now().Add(72*time.Hour))
	d := openDispute(t, e, f, models.DisputeReasonNotAsDescribed)

	resolved, err := e.disputes.ResolveDispute(ctx, d.ID, models.ResolutionSplit, "", uuid.New())
	require.NoError(t, err)
	require.Equal(t, models.DisputeStatusResolved, resolved.Status)

	tx, err := e.escrowRepo.GetByOrderID(ctx, f.orderID)
	require.NoError(t, err)
	require.EqualValues(t, 101, tx.ReleasedCents+tx.RefundedCents)
	require.Positive(t, tx.ReleasedCents)
	require.Positive(t, tx.RefundedCents)

	seller, err := e.sellerRepo.GetByID(ctx, f.sellerID)
	require.NoError(t, err)
	require.Zero(t, seller.Balance.FrozenCents)
	require.EqualValues(t, tx.ReleasedCents, seller.Balance.AvailableCents)
}

func TestResolveDisputeTwiceRejected(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	f := seedOrder(t, models.OrderStatusDelivered, 5000)
	frozenEscrow(t, e, f, 5000, time.Now().Add(72*time.Hour))
	d := openDispute(t, e, f, models.DisputeReasonNotReceived)

	_, err := e.disputes.ResolveDispute(ctx, d.ID, models.ResolutionSellerWin, "", uuid.New())
	require.NoError(t, err)

	_, err = e.disputes.ResolveDispute(ctx, d.ID, models.ResolutionBuyerWin, "", uuid.New())
	require.ErrorIs(t, err, models.ErrInvalidState)

	kept, err := e.disputeRepo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, models.ResolutionSellerWin, *kept.Resolution)
}

// A matured escrow under an open dispute must survive the release pass
// untouched until the dispute is decided.
func TestSchedulerReleaseSkipsDisputedOrder(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	f := seedOrder(t, models.OrderStatusDelivered, 5000)
	frozenEscrow(t, e, f, 5000, time.Now().Add(-time.Hour))
	d := openDispute(t, e, f, models.DisputeReasonNotReceived)

	e.scheduler.RunReleasePass(ctx)

	tx, err := e.escrowRepo.GetByOrderID(ctx, f.orderID)
	require.NoError(t, err)
	require.Equal(t, models.EscrowStatusFrozen, tx.Status)

	_, err = e.disputes.ResolveDispute(ctx, d.ID, models.ResolutionBuyerWin, "", uuid.New())
	require.NoError(t, err)

	// Another pass after the verdict finds nothing to release for this order.
	e.scheduler.RunReleasePass(ctx)
	tx, err = e.escrowRepo.GetByOrderID(ctx, f.orderID)
	require.NoError(t, err)
	require.Equal(t, models.EscrowStatusRefunded, tx.Status)
}

func TestOnOrderPaidRejectsCancelledOrder(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	f := seedOrder(t, models.OrderStatusCancelled, 5000)

	_, err := e.escrow.OnOrderPaid(ctx, f.orderID)
	require.ErrorIs(t, err, models.ErrInvalidState)

	_, err = e.escrowRepo.GetByOrderID(ctx, f.orderID)
	require.ErrorIs(t, err, models.ErrNotFound)

	seller, err := e.sellerRepo.GetByID(ctx, f.sellerID)
	require.NoError(t, err)
	require.Zero(t, seller.Balance.FrozenCents)
}

func TestOnOrderPaidIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	f := seedOrder(t, models.OrderStatusPending, 5000)

	first, err := e.escrow.OnOrderPaid(ctx, f.orderID)
	require.NoError(t, err)
	require.Equal(t, models.EscrowStatusFrozen, first.Status)

	second, err := e.escrow.OnOrderPaid(ctx, f.orderID)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	seller, err := e.sellerRepo.GetByID(ctx, f.sellerID)
	require.NoError(t, err)
	require.EqualValues(t, 5000, seller.Balance.FrozenCents)
}
