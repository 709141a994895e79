package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bustix/internal/domain"
	"bustix/internal/domain/models"
	"bustix/internal/repositories"
	"bustix/internal/utils"

	"github.com/google/uuid"
)

// DefaultHoldTTL applies when no TTL is configured.
const DefaultHoldTTL = 7 * time.Minute

// HoldScheduler arranges a durable expiry for a pending reservation and is
// told when the reservation settles before that.
type HoldScheduler interface {
	ScheduleExpiry(ctx context.Context, reservationID string, expiresAt time.Time) error
	Settled(ctx context.Context, reservationID string) error
}

// ReservationService drives pending -> confirmed|expired|cancelled and keeps
// seat state and ledger in agreement. Work on one reservation is serialized
// through the store's lock, which spans processes for the MySQL store.
type ReservationService struct {
	Reservations repositories.ReservationStore
	Inventory    InventoryService
	Ledger       LedgerService
	Scheduler    HoldScheduler
	HoldTTL      time.Duration
	Now          func() time.Time
	NewID        func() string
}

func NewReservationService(store repositories.ReservationStore, inv InventoryService, ledger LedgerService, ttl time.Duration) *ReservationService {
	return &ReservationService{
		Reservations: store,
		Inventory:    inv,
		Ledger:       ledger,
		HoldTTL:      ttl,
	}
}

func PurchaseKey(reservationID string) string { return "purchase:" + reservationID }
func ReversalKey(reservationID string) string { return "reversal:" + reservationID }
func RefundKey(reservationID string) string   { return "refund:" + reservationID }

func (s *ReservationService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return utils.NowUTC()
}

func (s *ReservationService) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *ReservationService) ttl() time.Duration {
	if s.HoldTTL > 0 {
		return s.HoldTTL
	}
	return DefaultHoldTTL
}

func (s *ReservationService) lock(ctx context.Context, id string) (func(), error) {
	return s.Reservations.Lock(ctx, id)
}

// RequestHold places a hold for accountID. On conflict nothing is persisted.
func (s *ReservationService) RequestHold(ctx context.Context, tripID string, seatIDs []string, accountID string) (models.Reservation, error) {
	return s.RequestHoldFor(ctx, tripID, seatIDs, accountID, "")
}

// RequestHoldFor places a hold for accountID on behalf of placedBy, an agent
// account that may later confirm or cancel it. placedBy may be empty.
func (s *ReservationService) RequestHoldFor(ctx context.Context, tripID string, seatIDs []string, accountID, placedBy string) (models.Reservation, error) {
	tripID = strings.TrimSpace(tripID)
	placedBy = strings.TrimSpace(placedBy)
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return models.Reservation{}, domain.ValidationError{Field: "account_id", Msg: "required"}
	}
	seats := utils.NormalizeSeatIDs(seatIDs)
	if len(seats) == 0 {
		return models.Reservation{}, domain.ValidationError{Field: "seat_ids", Msg: "at least one seat is required"}
	}
	if _, err := s.Inventory.Trip(ctx, tripID); err != nil {
		return models.Reservation{}, err
	}

	id := s.newID()
	heldUntil, err := s.Inventory.Hold(ctx, tripID, seats, id, s.ttl())
	if err != nil {
		return models.Reservation{}, err
	}

	now := s.now()
	res := models.Reservation{
		ID:        id,
		TripID:    tripID,
		SeatIDs:   seats,
		AccountID: accountID,
		PlacedBy:  placedBy,
		State:     models.ReservationPending,
		CreatedAt: now,
		ExpiresAt: heldUntil,
		UpdatedAt: now,
	}
	if err := s.Reservations.Create(ctx, res); err != nil {
		if relErr := s.Inventory.Release(ctx, id); relErr != nil {
			utils.LogWarn(utils.RequestID(ctx), "reservation", "request_hold", "release after failed create: "+relErr.Error())
		}
		return models.Reservation{}, err
	}
	if s.Scheduler != nil {
		if err := s.Scheduler.ScheduleExpiry(ctx, id, heldUntil); err != nil {
			utils.LogWarn(utils.RequestID(ctx), "reservation", "request_hold", "schedule expiry failed, sweeper will reclaim: "+err.Error())
		}
	}
	utils.LogEvent(utils.RequestID(ctx), "reservation", "request_hold", fmt.Sprintf("reservation_id=%s trip_id=%s seats=%d", id, tripID, len(seats)))
	return res, nil
}

// Get returns the reservation, expiring it first when its hold has lapsed.
func (s *ReservationService) Get(ctx context.Context, id string) (models.Reservation, error) {
	res, err := s.Reservations.Get(ctx, id)
	if err != nil {
		return models.Reservation{}, err
	}
	if res.State != models.ReservationPending || !models.HoldExpired(res.ExpiresAt, s.now()) {
		return res, nil
	}
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return models.Reservation{}, err
	}
	defer unlock()
	res, _, err = s.expireIfDue(ctx, id, s.now())
	return res, err
}

// ConfirmAndPay debits the account, then books the seats. If the hold turns
// out to be expired the debit is reversed and ExpiredError is returned.
func (s *ReservationService) ConfirmAndPay(ctx context.Context, id string) (models.Reservation, error) {
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return models.Reservation{}, err
	}
	defer unlock()

	res, err := s.Reservations.Get(ctx, id)
	if err != nil {
		return models.Reservation{}, err
	}
	switch res.State {
	case models.ReservationConfirmed:
		return res, nil
	case models.ReservationExpired:
		return res, domain.ExpiredError{Resource: "reservation", ID: id}
	case models.ReservationCancelled:
		return res, domain.ConflictError{Resource: "reservation", Msg: "reservation " + id + " is cancelled"}
	}

	now := s.now()
	if models.HoldExpired(res.ExpiresAt, now) {
		out, expired, err := s.expireLocked(ctx, res, now)
		if err != nil || !expired {
			return out, err
		}
		return out, domain.ExpiredError{Resource: "reservation", ID: id}
	}

	trip, err := s.Inventory.Trip(ctx, res.TripID)
	if err != nil {
		return res, err
	}
	amount := int64(len(res.SeatIDs)) * trip.BasePrice
	purchase, err := s.Ledger.Append(ctx, models.LedgerRequest{
		AccountID:           res.AccountID,
		Type:                models.TxPurchase,
		Amount:              -amount,
		IdempotencyKey:      PurchaseKey(id),
		LinkedReservationID: id,
	})
	if err != nil {
		return res, err
	}

	paid := res
	paid.Amount = amount
	paid.PurchaseTxID = purchase.Transaction.ID
	paid.UpdatedAt = now
	if err := s.Reservations.Update(ctx, paid, models.ReservationPending); err != nil {
		return res, err
	}

	if err := s.Inventory.Confirm(ctx, id); err != nil {
		if !domain.IsExpired(err) && !domain.IsNotFound(err) {
			return paid, err
		}
		// Seats are gone: undo the debit so ledger and seat map agree.
		expired, cerr := s.settle(ctx, paid, models.ReservationExpired, ReversalKey(id), s.now())
		if cerr != nil {
			return paid, cerr
		}
		return expired, domain.ExpiredError{Resource: "reservation", ID: id}
	}

	confirmed := paid
	confirmed.State = models.ReservationConfirmed
	confirmed.UpdatedAt = s.now()
	if err := s.Reservations.Update(ctx, confirmed, models.ReservationPending); err != nil {
		return paid, err
	}
	s.notifySettled(ctx, id)
	utils.LogEvent(utils.RequestID(ctx), "reservation", "confirm", fmt.Sprintf("reservation_id=%s amount=%d tx=%s", id, amount, confirmed.PurchaseTxID))
	return confirmed, nil
}

// Cancel moves a pending or confirmed reservation to cancelled, releasing its
// seats and refunding any purchase. Terminal reservations are returned as-is.
func (s *ReservationService) Cancel(ctx context.Context, id string) (models.Reservation, error) {
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return models.Reservation{}, err
	}
	defer unlock()

	res, err := s.Reservations.Get(ctx, id)
	if err != nil {
		return models.Reservation{}, err
	}
	switch res.State {
	case models.ReservationExpired, models.ReservationCancelled:
		return res, nil
	case models.ReservationConfirmed:
		if err := s.Inventory.CancelBooking(ctx, id); err != nil && !domain.IsNotFound(err) {
			return res, err
		}
		out, err := s.settle(ctx, res, models.ReservationCancelled, RefundKey(id), s.now())
		if err != nil {
			return res, err
		}
		utils.LogEvent(utils.RequestID(ctx), "reservation", "cancel", fmt.Sprintf("reservation_id=%s refund_tx=%s", id, out.RefundTxID))
		return out, nil
	}

	out, err := s.freeSeatsAndSettle(ctx, res, models.ReservationCancelled, s.now())
	if err != nil {
		return res, err
	}
	utils.LogEvent(utils.RequestID(ctx), "reservation", "cancel", "pending reservation cancelled id="+id)
	return out, nil
}

// ExpireDue expires every pending reservation whose hold lapsed at now.
func (s *ReservationService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.Reservations.ListPendingExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range due {
		unlock, err := s.lock(ctx, r.ID)
		if domain.IsConflict(err) {
			// Another process is working on it.
			continue
		}
		if err != nil {
			return n, err
		}
		_, expired, err := s.expireIfDue(ctx, r.ID, now)
		unlock()
		if err != nil {
			return n, err
		}
		if expired {
			n++
		}
	}
	return n, nil
}

// ExpireReservation expires id if it is still pending and its hold lapsed.
// It reports whether this call performed the transition.
func (s *ReservationService) ExpireReservation(ctx context.Context, id string) (bool, error) {
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return false, err
	}
	defer unlock()
	_, expired, err := s.expireIfDue(ctx, id, s.now())
	return expired, err
}

// expireIfDue must be called with the reservation lock held.
func (s *ReservationService) expireIfDue(ctx context.Context, id string, now time.Time) (models.Reservation, bool, error) {
	res, err := s.Reservations.Get(ctx, id)
	if err != nil {
		return models.Reservation{}, false, err
	}
	if res.State != models.ReservationPending || !models.HoldExpired(res.ExpiresAt, now) {
		return res, false, nil
	}
	return s.expireLocked(ctx, res, now)
}

// expireLocked expires a lapsed pending reservation. If a confirm already
// booked the seats and its purchase is recorded, the confirm is finished
// instead and expired is false.
func (s *ReservationService) expireLocked(ctx context.Context, res models.Reservation, now time.Time) (models.Reservation, bool, error) {
	out, done, err := s.finishInterruptedConfirm(ctx, res, now)
	if err != nil || done {
		return out, false, err
	}
	out, err = s.freeSeatsAndSettle(ctx, res, models.ReservationExpired, now)
	if err != nil {
		return res, false, err
	}
	utils.LogEvent(utils.RequestID(ctx), "reservation", "expire", "reservation_id="+res.ID)
	return out, true, nil
}

// finishInterruptedConfirm moves res to confirmed when every seat is booked
// by it and a completed purchase exists.
func (s *ReservationService) finishInterruptedConfirm(ctx context.Context, res models.Reservation, now time.Time) (models.Reservation, bool, error) {
	seats, err := s.Inventory.SeatMap(ctx, res.TripID)
	if err != nil {
		if domain.IsNotFound(err) {
			return res, false, nil
		}
		return res, false, err
	}
	booked := 0
	for _, st := range seats {
		if st.Status == models.SeatBooked && st.HolderID == res.ID {
			booked++
		}
	}
	if booked == 0 || booked != len(res.SeatIDs) {
		return res, false, nil
	}
	purchase, found, err := s.Ledger.Lookup(ctx, res.AccountID, PurchaseKey(res.ID))
	if err != nil {
		return res, false, err
	}
	if !found || purchase.Status != models.TxCompleted {
		return res, false, nil
	}
	confirmed := res
	confirmed.State = models.ReservationConfirmed
	confirmed.Amount = -purchase.Amount
	confirmed.PurchaseTxID = purchase.ID
	confirmed.UpdatedAt = now
	if err := s.Reservations.Update(ctx, confirmed, models.ReservationPending); err != nil {
		return res, false, err
	}
	s.notifySettled(ctx, res.ID)
	utils.LogEvent(utils.RequestID(ctx), "reservation", "confirm", "finished interrupted confirm reservation_id="+res.ID)
	return confirmed, true, nil
}

// freeSeatsAndSettle ends a pending reservation. A pending reservation only
// owns booked seats when a confirm stopped between booking and the state
// update; its purchase is reversed here, so those seats are freed as well.
func (s *ReservationService) freeSeatsAndSettle(ctx context.Context, res models.Reservation, to models.ReservationState, at time.Time) (models.Reservation, error) {
	if err := s.Inventory.CancelBooking(ctx, res.ID); err != nil && !domain.IsNotFound(err) {
		return res, err
	}
	return s.settle(ctx, res, to, ReversalKey(res.ID), at)
}

// settle compensates a recorded purchase under key, if one exists, and moves
// the reservation to the terminal state.
func (s *ReservationService) settle(ctx context.Context, res models.Reservation, to models.ReservationState, key string, at time.Time) (models.Reservation, error) {
	from := res.State
	purchase, found, err := s.Ledger.Lookup(ctx, res.AccountID, PurchaseKey(res.ID))
	if err != nil {
		return res, err
	}
	out := res
	if found && purchase.Status == models.TxCompleted {
		refund, err := s.Ledger.Append(ctx, models.LedgerRequest{
			AccountID:             res.AccountID,
			Type:                  models.TxRefund,
			Amount:                -purchase.Amount,
			IdempotencyKey:        key,
			LinkedReservationID:   res.ID,
			ReversesTransactionID: purchase.ID,
		})
		if err != nil {
			return res, err
		}
		out.Amount = -purchase.Amount
		out.PurchaseTxID = purchase.ID
		out.RefundTxID = refund.Transaction.ID
	}
	out.State = to
	out.UpdatedAt = at
	if err := s.Reservations.Update(ctx, out, from); err != nil {
		return res, err
	}
	s.notifySettled(ctx, res.ID)
	return out, nil
}

func (s *ReservationService) notifySettled(ctx context.Context, id string) {
	if s.Scheduler == nil {
		return
	}
	if err := s.Scheduler.Settled(ctx, id); err != nil {
		utils.LogWarn(utils.RequestID(ctx), "reservation", "settled", "notify scheduler: "+err.Error())
	}
}
