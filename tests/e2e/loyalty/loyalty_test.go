//go:build e2e

package loyalty_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"loyalty-core/internal/handler/dto/request"
	"loyalty-core/internal/handler/dto/response"
	"loyalty-core/tests/common/authtest"
	"loyalty-core/tests/common/dbtest"
	"loyalty-core/tests/common/httptest"
	"loyalty-core/tests/e2e"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	redeemURLFmt   = "/api/rewards/%s/redeem"
	couponsURL     = "/api/coupons"
	useCouponURL   = "/api/coupons/use"
	balanceURL     = "/api/balance"
	transferURL    = "/api/balance/transfer"
	historyURL     = "/api/history"
	coffeeVoucher  = "coffee-voucher"
	badgeRewardKey = "loyal-member-badge"
)

type LoyaltySuite struct {
	e2e.SharedSuite
}

func (s *LoyaltySuite) SetupSubTest() {
	s.SharedSuite.SetupSubTest()
}

func TestLoyaltySuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(LoyaltySuite))
}

func (s *LoyaltySuite) memberToken(t *testing.T, memberID uuid.UUID) string {
	t.Helper()
	return authtest.NewJWTHelper(s.Config.JWT).GenerateToken(t, memberID)
}

// =============================================================================
// TestRedemptionFlow - the redeem / activate / use journey
// =============================================================================

func (s *LoyaltySuite) TestRedemptionFlow() {
	s.Run("Normal case: member redeems, activates and uses a coupon", func() {
		t := s.T()

		memberID := uuid.New()
		dbtest.SeedBalance(t, s.DB, memberID, 500, 0, 0)
		token := s.memberToken(t, memberID)

		// Redeem
		w := httptest.PerformRequest(t, s.Router, http.MethodPost,
			fmt.Sprintf(redeemURLFmt, coffeeVoucher), nil, token)
		var redeemed response.RedeemResponse
		httptest.AssertSuccessResponse(t, w, http.StatusCreated, &redeemed)
		require.False(t, redeemed.Replayed)
		require.Equal(t, "redeemed", redeemed.Coupon.Status)
		require.EqualValues(t, 490, redeemed.Balance.Bank)

		// Activate
		w = httptest.PerformRequest(t, s.Router, http.MethodPost,
			couponsURL+"/"+redeemed.Coupon.ID.String()+"/activate", nil, token)
		var activated response.CouponResponse
		httptest.AssertSuccessResponse(t, w, http.StatusOK, &activated)
		require.Equal(t, "active", activated.Status)
		require.NotNil(t, activated.ActiveExpiresAt)

		// Use (merchant scans the code)
		w = httptest.PerformRequest(t, s.Router, http.MethodPost, useCouponURL,
			request.UseCouponRequest{Code: activated.Code}, token)
		var used response.CouponResponse
		httptest.AssertSuccessResponse(t, w, http.StatusOK, &used)
		require.Equal(t, "used", used.Status)
		require.NotNil(t, used.UsedAt)

		// Balance and ledger reflect the journey
		bank, _, _, total := dbtest.FetchBalance(t, s.DB, memberID)
		require.EqualValues(t, 490, bank)
		require.EqualValues(t, 490, total)
		require.Equal(t, 1, dbtest.CountLedgerEntries(t, s.DB, memberID, "redeem"))
		require.Equal(t, 1, dbtest.CountLedgerEntries(t, s.DB, memberID, "use"))
	})

	s.Run("Normal case: repeated redeem replays the live instance", func() {
		t := s.T()

		memberID := uuid.New()
		dbtest.SeedBalance(t, s.DB, memberID, 100, 0, 0)
		token := s.memberToken(t, memberID)

		w := httptest.PerformRequest(t, s.Router, http.MethodPost,
			fmt.Sprintf(redeemURLFmt, coffeeVoucher), nil, token)
		var first response.RedeemResponse
		httptest.AssertSuccessResponse(t, w, http.StatusCreated, &first)

		w = httptest.PerformRequest(t, s.Router, http.MethodPost,
			fmt.Sprintf(redeemURLFmt, coffeeVoucher), nil, token)
		var second response.RedeemResponse
		httptest.AssertSuccessResponse(t, w, http.StatusOK, &second)

		require.True(t, second.Replayed)
		require.Equal(t, first.Coupon.ID, second.Coupon.ID)
		require.Equal(t, first.Coupon.Code, second.Coupon.Code)

		// Points moved exactly once
		bank, _, _, _ := dbtest.FetchBalance(t, s.DB, memberID)
		require.EqualValues(t, 90, bank)
		require.Equal(t, 1, dbtest.CountLedgerEntries(t, s.DB, memberID, "redeem"))
	})

	s.Run("Error case: insufficient points journals a failed attempt", func() {
		t := s.T()

		memberID := uuid.New()
		dbtest.SeedBalance(t, s.DB, memberID, 3, 0, 0)
		token := s.memberToken(t, memberID)

		w := httptest.PerformRequest(t, s.Router, http.MethodPost,
			fmt.Sprintf(redeemURLFmt, coffeeVoucher), nil, token)
		httptest.AssertErrorResponse(t, w, http.StatusUnprocessableEntity, "Insufficient points")

		bank, _, _, _ := dbtest.FetchBalance(t, s.DB, memberID)
		require.EqualValues(t, 3, bank, "balance must be untouched")
		require.Equal(t, 1, dbtest.CountLedgerEntries(t, s.DB, memberID, "redeem"),
			"failed attempt must still be journaled")
	})

	s.Run("Invariant: coupon codes and QR payloads are unique across instances", func() {
		t := s.T()

		memberID := uuid.New()
		dbtest.SeedBalance(t, s.DB, memberID, 100, 0, 0)
		token := s.memberToken(t, memberID)

		w := httptest.PerformRequest(t, s.Router, http.MethodPost,
			fmt.Sprintf(redeemURLFmt, coffeeVoucher), nil, token)
		var redeemed response.RedeemResponse
		httptest.AssertSuccessResponse(t, w, http.StatusCreated, &redeemed)

		ctx := context.Background()
		var templateID uuid.UUID
		err := s.DB.QueryRow(ctx,
			"SELECT template_id FROM coupon_instances WHERE id = $1",
			redeemed.Coupon.ID).Scan(&templateID)
		require.NoError(t, err)

		insertSQL := `
			INSERT INTO coupon_instances
			    (id, member_id, template_id, reward_key, title, category_used, cost_paid,
			     status, code, qr_payload, issued_at, valid_until)
			VALUES ($1, $2, $3, $4, 'Coffee Voucher', 'bank', 10,
			    'used', $5, $6, now(), now() + interval '30 days')`

		var pgErr *pgconn.PgError

		// Same QR payload, different code
		_, err = s.DB.Exec(ctx, insertSQL, uuid.New(), uuid.New(), templateID,
			coffeeVoucher, "CP-OTHERCODE", redeemed.Coupon.QRPayload)
		require.ErrorAs(t, err, &pgErr)
		require.Equal(t, "23505", pgErr.Code)

		// Same code, different QR payload
		_, err = s.DB.Exec(ctx, insertSQL, uuid.New(), uuid.New(), templateID,
			coffeeVoucher, redeemed.Coupon.Code, "loyalty://coupon/CP-OTHERCODE")
		require.ErrorAs(t, err, &pgErr)
		require.Equal(t, "23505", pgErr.Code)
	})

	s.Run("Error case: badge rewards cannot be redeemed as coupons", func() {
		t := s.T()

		memberID := uuid.New()
		dbtest.SeedBalance(t, s.DB, memberID, 500, 0, 0)
		token := s.memberToken(t, memberID)

		w := httptest.PerformRequest(t, s.Router, http.MethodPost,
			fmt.Sprintf(redeemURLFmt, badgeRewardKey), nil, token)
		httptest.AssertErrorResponse(t, w, http.StatusBadRequest, "not redeemable")
	})

	s.Run("Error case: out-of-stock coupon is rejected without charging", func() {
		t := s.T()

		// First member materializes the template
		firstID := uuid.New()
		dbtest.SeedBalance(t, s.DB, firstID, 100, 0, 0)
		w := httptest.PerformRequest(t, s.Router, http.MethodPost,
			fmt.Sprintf(redeemURLFmt, coffeeVoucher), nil, s.memberToken(t, firstID))
		httptest.AssertSuccessResponse(t, w, http.StatusCreated, nil)

		dbtest.SetTemplateStock(t, s.DB, coffeeVoucher, 0)

		secondID := uuid.New()
		dbtest.SeedBalance(t, s.DB, secondID, 100, 0, 0)
		w = httptest.PerformRequest(t, s.Router, http.MethodPost,
			fmt.Sprintf(redeemURLFmt, coffeeVoucher), nil, s.memberToken(t, secondID))
		httptest.AssertErrorResponse(t, w, http.StatusConflict, "out of stock")

		bank, _, _, _ := dbtest.FetchBalance(t, s.DB, secondID)
		require.EqualValues(t, 100, bank)
	})

	s.Run("Concurrency: the last unit is granted exactly once", func() {
		t := s.T()

		// Materialize the template, then squeeze stock down to one
		seedID := uuid.New()
		dbtest.SeedBalance(t, s.DB, seedID, 100, 0, 0)
		w := httptest.PerformRequest(t, s.Router, http.MethodPost,
			fmt.Sprintf(redeemURLFmt, coffeeVoucher), nil, s.memberToken(t, seedID))
		httptest.AssertSuccessResponse(t, w, http.StatusCreated, nil)
		dbtest.SetTemplateStock(t, s.DB, coffeeVoucher, 1)

		const contenders = 4
		tokens := make([]string, contenders)
		for i := range contenders {
			memberID := uuid.New()
			dbtest.SeedBalance(t, s.DB, memberID, 100, 0, 0)
			tokens[i] = s.memberToken(t, memberID)
		}

		statuses := make([]int, contenders)
		var wg sync.WaitGroup
		for i := range contenders {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				rec := httptest.PerformRequest(t, s.Router, http.MethodPost,
					fmt.Sprintf(redeemURLFmt, coffeeVoucher), nil, tokens[i])
				statuses[i] = rec.Code
			}(i)
		}
		wg.Wait()

		created := 0
		for _, code := range statuses {
			switch code {
			case http.StatusCreated:
				created++
			case http.StatusConflict:
				// loser: out of stock or storage conflict
			default:
				t.Fatalf("unexpected status %d", code)
			}
		}
		require.Equal(t, 1, created, "exactly one contender may win the last unit")
	})
}

// =============================================================================
// TestTransfer - moving points between buckets
// =============================================================================

func (s *LoyaltySuite) TestTransfer() {
	s.Run("Normal case: internal transfer moves both buckets atomically", func() {
		t := s.T()

		memberID := uuid.New()
		dbtest.SeedBalance(t, s.DB, memberID, 200, 0, 0)
		token := s.memberToken(t, memberID)

		w := httptest.PerformRequest(t, s.Router, http.MethodPost, transferURL,
			request.TransferRequest{From: "bank", To: "wealth", Amount: 50}, token)
		var resp response.TransferResponse
		httptest.AssertSuccessResponse(t, w, http.StatusOK, &resp)
		require.EqualValues(t, 150, resp.Balance.Bank)
		require.EqualValues(t, 50, resp.Balance.Wealth)
		require.EqualValues(t, 200, resp.Balance.Total)
		require.NotEqual(t, uuid.Nil, resp.CorrelationRef)

		require.Equal(t, 1, dbtest.CountLedgerEntries(t, s.DB, memberID, "transfer_out"))
		require.Equal(t, 1, dbtest.CountLedgerEntries(t, s.DB, memberID, "transfer_in"))
	})

	s.Run("Normal case: transfer to the partner sink only debits", func() {
		t := s.T()

		memberID := uuid.New()
		dbtest.SeedBalance(t, s.DB, memberID, 120, 0, 0)
		token := s.memberToken(t, memberID)

		w := httptest.PerformRequest(t, s.Router, http.MethodPost, transferURL,
			request.TransferRequest{From: "bank", To: "partner", Amount: 30}, token)
		var resp response.TransferResponse
		httptest.AssertSuccessResponse(t, w, http.StatusOK, &resp)
		require.EqualValues(t, 90, resp.Balance.Bank)
		require.EqualValues(t, 90, resp.Balance.Total)

		require.Equal(t, 1, dbtest.CountLedgerEntries(t, s.DB, memberID, "transfer_out"))
		require.Equal(t, 0, dbtest.CountLedgerEntries(t, s.DB, memberID, "transfer_in"))
	})

	s.Run("Error case: insufficient balance rejects and journals", func() {
		t := s.T()

		memberID := uuid.New()
		dbtest.SeedBalance(t, s.DB, memberID, 10, 0, 0)
		token := s.memberToken(t, memberID)

		w := httptest.PerformRequest(t, s.Router, http.MethodPost, transferURL,
			request.TransferRequest{From: "bank", To: "wealth", Amount: 999}, token)
		httptest.AssertErrorResponse(t, w, http.StatusUnprocessableEntity, "Insufficient balance")

		bank, wealth, _, _ := dbtest.FetchBalance(t, s.DB, memberID)
		require.EqualValues(t, 10, bank)
		require.EqualValues(t, 0, wealth)
		require.Equal(t, 1, dbtest.CountLedgerEntries(t, s.DB, memberID, "transfer_out"))
	})

	s.Run("Error case: unknown category is a bad request", func() {
		t := s.T()

		memberID := uuid.New()
		dbtest.SeedBalance(t, s.DB, memberID, 100, 0, 0)
		token := s.memberToken(t, memberID)

		w := httptest.PerformRequest(t, s.Router, http.MethodPost, transferURL,
			request.TransferRequest{From: "bank", To: "crypto", Amount: 10}, token)
		httptest.AssertErrorResponse(t, w, http.StatusBadRequest, "Unknown balance category")
	})
}

// =============================================================================
// TestHistory - ledger feed with cursor pagination
// =============================================================================

func (s *LoyaltySuite) TestHistory() {
	s.Run("Normal case: pages do not overlap and the cursor terminates", func() {
		t := s.T()

		memberID := uuid.New()
		dbtest.SeedBalance(t, s.DB, memberID, 1000, 0, 0)
		token := s.memberToken(t, memberID)

		// Each internal transfer writes two ledger entries
		for range 3 {
			w := httptest.PerformRequest(t, s.Router, http.MethodPost, transferURL,
				request.TransferRequest{From: "bank", To: "wealth", Amount: 10}, token)
			httptest.AssertSuccessResponse(t, w, http.StatusOK, nil)
		}

		seen := make(map[uuid.UUID]bool)
		w := httptest.PerformRequest(t, s.Router, http.MethodGet, historyURL+"?limit=4", nil, token)
		var page1 response.HistoryResponse
		httptest.AssertSuccessResponse(t, w, http.StatusOK, &page1)
		require.Len(t, page1.Entries, 4)
		require.NotEmpty(t, page1.NextCursor)
		for _, e := range page1.Entries {
			seen[e.ID] = true
		}

		w = httptest.PerformRequest(t, s.Router, http.MethodGet,
			historyURL+"?limit=4&after="+page1.NextCursor, nil, token)
		var page2 response.HistoryResponse
		httptest.AssertSuccessResponse(t, w, http.StatusOK, &page2)
		require.Len(t, page2.Entries, 2)
		require.Empty(t, page2.NextCursor)
		for _, e := range page2.Entries {
			require.False(t, seen[e.ID], "entry %s appeared on both pages", e.ID)
		}
	})

	s.Run("Normal case: kind filter narrows the feed", func() {
		t := s.T()

		memberID := uuid.New()
		dbtest.SeedBalance(t, s.DB, memberID, 1000, 0, 0)
		token := s.memberToken(t, memberID)

		w := httptest.PerformRequest(t, s.Router, http.MethodPost, transferURL,
			request.TransferRequest{From: "bank", To: "wealth", Amount: 10}, token)
		httptest.AssertSuccessResponse(t, w, http.StatusOK, nil)
		w = httptest.PerformRequest(t, s.Router, http.MethodPost,
			fmt.Sprintf(redeemURLFmt, coffeeVoucher), nil, token)
		httptest.AssertSuccessResponse(t, w, http.StatusCreated, nil)

		w = httptest.PerformRequest(t, s.Router, http.MethodGet, historyURL+"?kind=redeem", nil, token)
		var filtered response.HistoryResponse
		httptest.AssertSuccessResponse(t, w, http.StatusOK, &filtered)
		require.Len(t, filtered.Entries, 1)
		require.Equal(t, "redeem", filtered.Entries[0].Kind)
	})

	s.Run("Error case: malformed cursor is rejected", func() {
		t := s.T()

		memberID := uuid.New()
		token := s.memberToken(t, memberID)

		w := httptest.PerformRequest(t, s.Router, http.MethodGet, historyURL+"?after=garbage", nil, token)
		httptest.AssertErrorResponse(t, w, http.StatusBadRequest, "Invalid cursor")
	})
}

// =============================================================================
// TestAuth - token handling on the protected group
// =============================================================================

func (s *LoyaltySuite) TestAuth() {
	s.Run("Error case: missing token is unauthorized", func() {
		t := s.T()

		w := httptest.PerformRequest(t, s.Router, http.MethodGet, balanceURL, nil, "")
		require.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())
	})

	s.Run("Error case: expired token is unauthorized", func() {
		t := s.T()

		token := authtest.NewJWTHelper(s.Config.JWT).CreateExpiredToken(t, uuid.New())
		w := httptest.PerformRequest(t, s.Router, http.MethodGet, balanceURL, nil, token)
		require.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())
	})

	s.Run("Normal case: session cookie works instead of the bearer header", func() {
		t := s.T()

		memberID := uuid.New()
		dbtest.SeedBalance(t, s.DB, memberID, 42, 0, 0)
		token := s.memberToken(t, memberID)

		cookies := []*http.Cookie{{Name: "access_token", Value: token}}
		w := httptest.PerformRequestWithCookies(t, s.Router, http.MethodGet, balanceURL, nil, cookies, "")
		var resp response.BalanceResponse
		httptest.AssertSuccessResponse(t, w, http.StatusOK, &resp)
		require.EqualValues(t, 42, resp.Bank)
	})
}
