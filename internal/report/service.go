package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/signintech/gopdf"

	"cardiovision/internal/consultation"
	"cardiovision/internal/risk"
	"cardiovision/pkg/logging"
)

// Sender delivers alerts to the care team chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, fileData []byte, fileName string) error
}

// DejaVuSans covers the non-Latin glyphs a narrative may contain.
var systemFontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

const (
	fontName   = "DejaVu"
	textWidth  = 500
	pageBreakY = 790
)

type Service struct {
	sender    Sender
	chatID    int64
	fontPaths []string
	logger    *logging.Logger
}

// NewService builds the renderer. sender may be nil when alerts are off;
// fontPath, if set, is tried before the system locations.
func NewService(sender Sender, chatID int64, fontPath string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	paths := systemFontPaths
	if fontPath != "" {
		paths = append([]string{fontPath}, systemFontPaths...)
	}
	return &Service{sender: sender, chatID: chatID, fontPaths: paths, logger: logger}
}

// Render lays out one assessment on an A4 page.
func (s *Service) Render(a consultation.Assessment) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := s.loadFont(&pdf); err != nil {
		return nil, err
	}

	w := &writer{pdf: &pdf}
	w.font(20)
	w.line(fmt.Sprintf("%s Risk Assessment", kindTitle(a.Kind)))
	w.gap(30)

	w.font(12)
	w.line(fmt.Sprintf("Date: %s", a.CreatedAt.Format("02.01.2006 15:04")))
	w.gap(15)
	w.line(fmt.Sprintf("Record: %s", a.ID))
	w.gap(15)
	w.line(fmt.Sprintf("Risk score: %d/100 (%s risk)", a.Score, a.Tier))
	w.gap(25)

	w.font(14)
	w.line("Reported risk factors:")
	w.gap(15)

	w.font(11)
	factors := positiveFactors(a)
	if len(factors) == 0 {
		w.line("- None reported.")
		w.gap(15)
	}
	for _, f := range factors {
		w.wrapped(fmt.Sprintf("- %s (weight %d)", f.Question, f.Weight))
		w.gap(3)
	}
	w.gap(15)

	if a.Narrative != "" {
		w.font(14)
		w.line("AI health insights:")
		w.gap(15)
		w.font(11)
		for _, para := range strings.Split(a.Narrative, "\n") {
			if strings.TrimSpace(para) == "" {
				w.gap(6)
				continue
			}
			w.wrapped(para)
		}
	}

	if w.err != nil {
		return nil, fmt.Errorf("failed to lay out PDF: %w", w.err)
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// SendHighRiskAlert posts a short notice and the rendered report. The notice
// still goes out when rendering fails.
func (s *Service) SendHighRiskAlert(ctx context.Context, a consultation.Assessment) error {
	if s.sender == nil || s.chatID == 0 {
		return nil
	}

	text := fmt.Sprintf("High %s risk: score %d/100 for user %s (record %s)", a.Kind, a.Score, a.OwnerID, a.ID)
	if err := s.sender.SendMessage(ctx, s.chatID, text); err != nil {
		return err
	}

	pdf, err := s.Render(a)
	if err != nil {
		return fmt.Errorf("render alert report: %w", err)
	}
	fileName := fmt.Sprintf("%s_assessment_%s.pdf", a.Kind, a.ID)
	if err := s.sender.SendDocument(ctx, s.chatID, pdf, fileName); err != nil {
		return err
	}
	s.logger.Info("high-risk alert sent", "id", a.ID, "chat_id", s.chatID)
	return nil
}

func (s *Service) loadFont(pdf *gopdf.GoPdf) error {
	var lastErr error
	for _, path := range s.fontPaths {
		err := pdf.AddTTFFont(fontName, path)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no font paths configured")
	}
	return fmt.Errorf("failed to load font for PDF. Please ensure ttf-dejavu is installed. Last error: %w", lastErr)
}

func positiveFactors(a consultation.Assessment) []risk.Factor {
	q, ok := risk.ForKind(a.Kind)
	if !ok {
		return nil
	}
	return risk.Positive(a.Answers, q)
}

func kindTitle(k risk.Kind) string {
	switch k {
	case risk.KindHeart:
		return "Heart Attack"
	case risk.KindStroke:
		return "Stroke"
	default:
		return string(k)
	}
}

// writer keeps the first layout error so Render can check once at the end.
type writer struct {
	pdf *gopdf.GoPdf
	err error
}

func (w *writer) font(size int) {
	if w.err == nil {
		w.err = w.pdf.SetFont(fontName, "", size)
	}
}

func (w *writer) line(text string) {
	if w.err == nil {
		w.err = w.pdf.Cell(nil, text)
	}
}

func (w *writer) gap(h float64) {
	w.pdf.Br(h)
	if w.pdf.GetY() > pageBreakY {
		w.pdf.AddPage()
	}
}

func (w *writer) wrapped(text string) {
	if w.err != nil {
		return
	}
	lines, err := w.pdf.SplitText(text, textWidth)
	if err != nil {
		w.err = err
		return
	}
	for _, l := range lines {
		w.line(l)
		w.gap(12)
	}
}
