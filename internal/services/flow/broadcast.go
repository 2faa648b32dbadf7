package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/streaming-reseller/internal/lib/sl"
	"github.com/magabrotheeeer/streaming-reseller/internal/models"
	"github.com/magabrotheeeer/streaming-reseller/internal/services/importer"
	"github.com/magabrotheeeer/streaming-reseller/internal/session"
)

func (e *Engine) startBroadcast(ctx context.Context, s *session.Session, args string) (Outcome, error) {
	s.Broadcast = &session.BroadcastDraft{}
	s.Step = session.StepBroadcastMessage
	if args == "" {
		return Outcome{Reply: promptBroadcast}, nil
	}
	return e.broadcastMessage(ctx, s, Input{Text: args})
}

func (e *Engine) broadcastMessage(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	if in.Text == "" {
		return Outcome{}, invalidInput(promptBroadcast)
	}
	clients, err := e.repo.ListActiveClients(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if len(clients) == 0 {
		s.Step = session.StepIdle
		return Outcome{Reply: "❌ No hay clientes activos."}, nil
	}
	s.Broadcast.Message = in.Text
	s.Broadcast.Recipients = len(clients)
	s.Step = session.StepBroadcastConfirm
	return Outcome{Reply: broadcastPreview(in.Text, len(clients))}, nil
}

// broadcastConfirm ставит сообщение в очередь каждому клиенту с активной подпиской;
// паузу между отправками выдерживает очередь уведомлений.
func (e *Engine) broadcastConfirm(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	const op = "flow.broadcastConfirm"
	s.Step = session.StepIdle
	if !isYes(in.Text) {
		return Outcome{Reply: "❌ Difusión cancelada."}, nil
	}

	clients, err := e.repo.ListActiveClients(ctx)
	if err != nil {
		return Outcome{}, err
	}
	notes := make([]models.Notification, 0, len(clients))
	for _, c := range clients {
		notes = append(notes, models.Notification{To: c.Phone, Text: s.Broadcast.Message, Kind: models.NotifyBroadcast})
	}
	e.log.Info("broadcast queued", sl.Op(op), sl.Chat(s.ChatID), slog.Int("recipients", len(notes)))
	return Outcome{
		Reply:         fmt.Sprintf("✅ Difusión en cola para %d clientes.", len(notes)),
		Notifications: notes,
	}, nil
}

func (e *Engine) startImport(_ context.Context, s *session.Session, _ string) (Outcome, error) {
	s.Step = session.StepImportAwaitFile
	return Outcome{Reply: promptImport}, nil
}

func (e *Engine) importAwaitFile(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	const op = "flow.importAwaitFile"
	if in.Attachment == nil || len(in.Attachment.Data) == 0 {
		return Outcome{}, invalidInput("❌ Envía un archivo .csv o .xlsx.\n\n" + promptImport)
	}

	report, err := e.importer.Import(ctx, in.Attachment.Filename, in.Attachment.Data)
	switch {
	case errors.Is(err, importer.ErrUnsupportedFormat):
		return Outcome{}, invalidInput("❌ Formato no soportado. Envía un archivo .csv o .xlsx.")
	case errors.Is(err, importer.ErrMalformed):
		return Outcome{}, invalidInput("❌ No pude leer el archivo. Revisa el formato e intenta de nuevo.")
	case err != nil:
		return Outcome{}, err
	}

	s.Step = session.StepIdle
	e.log.Info("import finished", sl.Op(op), sl.Chat(s.ChatID),
		slog.String("file", in.Attachment.Filename),
		slog.Int("created", report.Created),
		slog.Int("imported", report.Imported),
		slog.Int("skipped", report.Skipped))
	return Outcome{Reply: importSummary(report)}, nil
}
