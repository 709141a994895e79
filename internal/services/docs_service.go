package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"bustix/internal/domain"
	"bustix/internal/domain/models"
	"bustix/internal/utils"

	"github.com/phpdave11/gofpdf"
)

// DocsService renders the e-ticket and receipt PDFs of confirmed reservations.
type DocsService struct {
	Reservations *ReservationService
	Inventory    InventoryService
	RequestID    string
	Loader       func(ctx context.Context, reservationID string) (ticketDocData, error)
}

type ticketDocData struct {
	ReservationID string
	AccountID     string
	TripID        string
	RouteFrom     string
	RouteTo       string
	DepartureAt   string
	BusRef        string
	SeatIDs       []string
	PricePerSeat  int64
	Amount        int64
	PurchaseTxID  string
	IssuedAt      string
}

func (s DocsService) GenerateETicket(ctx context.Context, reservationID string) ([]byte, string, error) {
	data, err := s.loadTicketDocData(ctx, reservationID)
	if err != nil {
		return nil, "", err
	}
	utils.LogEvent(s.RequestID, "docs", "generate_eticket", "reservation_id="+reservationID)
	return buildETicketPDF(data)
}

func (s DocsService) GenerateReceipt(ctx context.Context, reservationID string) ([]byte, string, error) {
	data, err := s.loadTicketDocData(ctx, reservationID)
	if err != nil {
		return nil, "", err
	}
	utils.LogEvent(s.RequestID, "docs", "generate_receipt", "reservation_id="+reservationID)
	return buildReceiptPDF(data)
}

func (s DocsService) loadTicketDocData(ctx context.Context, reservationID string) (ticketDocData, error) {
	if s.Loader != nil {
		return s.Loader(ctx, reservationID)
	}
	var out ticketDocData
	res, err := s.Reservations.Get(ctx, reservationID)
	if err != nil {
		return out, err
	}
	if res.State != models.ReservationConfirmed {
		return out, domain.ConflictError{Resource: "reservation", Msg: "e-ticket requires a confirmed reservation, state is " + string(res.State)}
	}
	trip, err := s.Inventory.Trip(ctx, res.TripID)
	if err != nil {
		return out, err
	}

	out.ReservationID = res.ID
	out.AccountID = res.AccountID
	out.TripID = trip.ID
	out.RouteFrom = trip.RouteFrom
	out.RouteTo = trip.RouteTo
	out.DepartureAt = utils.FormatDateTime(trip.DepartureAt)
	out.BusRef = trip.BusRef
	out.SeatIDs = res.SeatIDs
	out.PricePerSeat = trip.BasePrice
	out.Amount = res.Amount
	out.PurchaseTxID = res.PurchaseTxID
	out.IssuedAt = utils.FormatDateTime(res.UpdatedAt)
	if out.Amount == 0 {
		// fallback jika amount belum tercatat
		out.Amount = trip.BasePrice * int64(len(res.SeatIDs))
	}
	return out, nil
}

func buildETicketPDF(d ticketDocData) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("E-Ticket", false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "E-TICKET")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Kode Reservasi : %s", safe(d.ReservationID, "-")),
		fmt.Sprintf("Akun           : %s", safe(d.AccountID, "-")),
		fmt.Sprintf("Trip           : %s", safe(d.TripID, "-")),
		fmt.Sprintf("Rute           : %s -> %s", safe(d.RouteFrom, "-"), safe(d.RouteTo, "-")),
		fmt.Sprintf("Keberangkatan  : %s", safe(d.DepartureAt, "-")),
		fmt.Sprintf("Bus            : %s", safe(d.BusRef, "-")),
		fmt.Sprintf("Seat           : %s", safe(strings.Join(d.SeatIDs, ", "), "-")),
		fmt.Sprintf("Total          : %s", utils.FormatRupiah(d.Amount)),
	}
	for _, s := range lines {
		pdf.Cell(0, 7, s)
		pdf.Ln(7)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, fmt.Sprintf("Catatan: E-ticket ini berlaku untuk %d seat. Harap tunjukkan saat keberangkatan.", len(d.SeatIDs)), "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("ETICKET_%s_%s.pdf", safeFilenamePart(d.TripID), safeFilenamePart(d.ReservationID))
	return buf.Bytes(), filename, nil
}

func buildReceiptPDF(d ticketDocData) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Receipt", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "RECEIPT")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 7, "No Transaksi : "+safe(d.PurchaseTxID, "-"))
	pdf.Ln(7)
	pdf.Cell(0, 7, "Tanggal      : "+safe(d.IssuedAt, "-"))
	pdf.Ln(10)

	desc := fmt.Sprintf("Tiket Bus %s -> %s (%s) Seat %s",
		safe(d.RouteFrom, "-"), safe(d.RouteTo, "-"),
		safe(d.DepartureAt, "-"), safe(strings.Join(d.SeatIDs, ", "), "-"),
	)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Rincian:")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, "1) "+desc, "", "", false)
	pdf.Ln(2)

	pdf.Cell(0, 6, fmt.Sprintf("Harga per seat: %s x %d", utils.FormatRupiah(d.PricePerSeat), len(d.SeatIDs)))
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Total: "+utils.FormatRupiah(d.Amount))
	pdf.Ln(12)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("RECEIPT_%s.pdf", safeFilenamePart(d.ReservationID))
	return buf.Bytes(), filename, nil
}

func safe(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

func safeFilenamePart(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "NA"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")
	s = replacer.Replace(s)
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}
