package worker

// close_report_worker.go
// Processes close-report jobs enqueued when a session closes:
//   1. freezes the sales summary snapshot (immutable from here on)
//   2. renders the closing-report PDF
//   3. emails the supervisor when the variance severity is critical
// Every step is best effort — the session is already committed CLOSED.

import (
	"context"
	"encoding/json"
	"fmt"

	"tillpoint/internal/config"
	"tillpoint/internal/infra"
	"tillpoint/internal/reconcile"
	"tillpoint/internal/repository"
	"tillpoint/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type CloseReportWorker struct {
	sessions  repository.SessionRepository
	registers repository.RegisterRepository
	sales     service.SalesService
	mailer    *infra.Mailer
	cfg       *config.Config
}

func NewCloseReportWorker(
	sessions repository.SessionRepository,
	registers repository.RegisterRepository,
	sales service.SalesService,
	mailer *infra.Mailer,
	cfg *config.Config,
) *CloseReportWorker {
	return &CloseReportWorker{
		sessions:  sessions,
		registers: registers,
		sales:     sales,
		mailer:    mailer,
		cfg:       cfg,
	}
}

func (w *CloseReportWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload CloseReportPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("close_report: invalid payload")
		return
	}
	sessionID, err := uuid.Parse(payload.SessionID)
	if err != nil {
		log.Error().Str("session_id", payload.SessionID).Msg("close_report: invalid session id")
		return
	}

	session, err := w.sessions.FindByID(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", payload.SessionID).Msg("close_report: session lookup failed")
		return
	}
	register, err := w.registers.FindByID(ctx, session.RegisterID)
	if err != nil {
		log.Error().Err(err).Str("session_id", payload.SessionID).Msg("close_report: register lookup failed")
		return
	}

	summary, err := w.sales.FreezeSummary(ctx, sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", payload.SessionID).Msg("close_report: summary freeze failed")
		// Continue with the live aggregate we got back.
	}

	pdfPath, err := infra.GenerateClosingReportPDF(session, register, summary, w.cfg.ReportStoragePath)
	if err != nil {
		log.Error().Err(err).Str("session_id", payload.SessionID).Msg("close_report: PDF generation failed")
		pdfPath = ""
	}

	if session.Severity != nil && *session.Severity == reconcile.SeverityCritical {
		w.sendCriticalAlert(session.ID.String(), register.Name, pdfPath)
	}

	log.Info().Str("session_id", payload.SessionID).Msg("close_report: processed")
}

func (w *CloseReportWorker) sendCriticalAlert(sessionID, registerName, pdfPath string) {
	if w.mailer == nil || w.cfg.SupervisorEmail == "" {
		log.Warn().Str("session_id", sessionID).Msg("close_report: critical variance but no supervisor email configured")
		return
	}
	subject := fmt.Sprintf("Critical cash variance on %s", registerName)
	body := fmt.Sprintf("Session %s on register %s closed with a critical variance. The closing report is attached.", sessionID, registerName)
	if err := w.mailer.SendReport(w.cfg.SupervisorEmail, subject, body, pdfPath); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("close_report: failed to send alert email")
		return
	}
	log.Info().Str("session_id", sessionID).Msg("close_report: critical variance alert sent")
}
