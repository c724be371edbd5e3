// Package growth holds the loyalty point ledger and referral rewards.
// Balances are derived from the ledger, never stored on the user.
package growth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	TxnEarnedPurchase   = "EARNED_PURCHASE"
	TxnEarnedReferral   = "EARNED_REFERRAL"
	TxnRedeemedDiscount = "REDEEMED_DISCOUNT"
	TxnExpired          = "EXPIRED"
	TxnAdjustment       = "ADJUSTMENT"
)

type Settings struct {
	PointsPerPi      decimal.Decimal
	ReferrerPoints   int
	RefereePoints    int // 0 disables the referee half of the reward
	PointsExpiryDays int
}

type Service struct {
	DB  *pgxpool.Pool
	Cfg Settings
}

// PointsEarned converts an order total into points: floor(total * rate).
func PointsEarned(total, rate decimal.Decimal) int {
	return int(total.Mul(rate).IntPart())
}

// GrantPurchasePoints credits points for a confirmed order. Idempotent per
// (user, order, type): grant ulang untuk order yang sama jadi no-op.
func (s *Service) GrantPurchasePoints(ctx context.Context, userID, orderID string, total decimal.Decimal) (int, error) {
	pts := PointsEarned(total, s.Cfg.PointsPerPi)
	if pts <= 0 {
		return 0, nil
	}
	expiry := time.Now().UTC().AddDate(0, 0, s.Cfg.PointsExpiryDays)
	ct, err := s.DB.Exec(ctx, `
		INSERT INTO loyalty_point_transactions(id, user_id, points_amount, transaction_type, related_order_id, expiration_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, related_order_id, transaction_type) DO NOTHING`,
		uuid.NewString(), userID, pts, TxnEarnedPurchase, orderID, expiry)
	if err != nil {
		return 0, err
	}
	if ct.RowsAffected() == 0 {
		return 0, nil // already granted for this order
	}
	return pts, nil
}

// FinalizeReferralReward rewards the referrer once the referee's first
// purchase confirms. No pending referral is a quiet no-op.
func (s *Service) FinalizeReferralReward(ctx context.Context, refereeID, orderID string) error {
	if s.Cfg.ReferrerPoints <= 0 && s.Cfg.RefereePoints <= 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var referralID, referrerID string
	err = tx.QueryRow(ctx, `
		SELECT id, referrer_id FROM referrals
		WHERE referee_id=$1 AND reward_granted=false AND referrer_id IS NOT NULL
		FOR UPDATE`, refereeID).Scan(&referralID, &referrerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	expiry := time.Now().UTC().AddDate(0, 0, s.Cfg.PointsExpiryDays)
	if s.Cfg.ReferrerPoints > 0 {
		if _, err := tx.Exec(ctx, `
			INSERT INTO loyalty_point_transactions(id, user_id, points_amount, transaction_type, related_order_id, expiration_date)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id, related_order_id, transaction_type) DO NOTHING`,
			uuid.NewString(), referrerID, s.Cfg.ReferrerPoints, TxnEarnedReferral, orderID, expiry); err != nil {
			return err
		}
	}
	// Kebijakan opsional: referee juga dapat poin (source variants tidak sepakat).
	if s.Cfg.RefereePoints > 0 {
		if _, err := tx.Exec(ctx, `
			INSERT INTO loyalty_point_transactions(id, user_id, points_amount, transaction_type, related_order_id, expiration_date)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id, related_order_id, transaction_type) DO NOTHING`,
			uuid.NewString(), refereeID, s.Cfg.RefereePoints, TxnEarnedReferral, orderID, expiry); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx,
		`UPDATE referrals SET reward_granted=true WHERE id=$1`, referralID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Balance sums the user's non-expired ledger entries.
func (s *Service) Balance(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.DB.QueryRow(ctx, `
		SELECT COALESCE(SUM(points_amount), 0)
		FROM loyalty_point_transactions
		WHERE user_id=$1 AND (expiration_date IS NULL OR expiration_date > now())`,
		userID).Scan(&n)
	return n, err
}
