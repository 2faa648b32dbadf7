package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/magabrotheeeer/streaming-reseller/internal/lib/normalize"
	"github.com/magabrotheeeer/streaming-reseller/internal/lib/sl"
	"github.com/magabrotheeeer/streaming-reseller/internal/session"
	"github.com/magabrotheeeer/streaming-reseller/internal/storage/repository"
)

// Пункты меню клиента.
const (
	clientBack = iota
	clientSale
	clientSubs
	clientDelete
	clientResend
	clientEditName
	clientEditPhone
)

// Пункты меню подписки клиента.
const (
	clientSubBack = iota
	clientSubRenew
	clientSubDelete
)

func (e *Engine) startClients(ctx context.Context, s *session.Session, args string) (Outcome, error) {
	s.Clients = &session.ClientsDraft{Term: args}
	return e.showClients(ctx, s)
}

// showClients выполняет поиск заново и показывает список; пустой результат завершает диалог.
func (e *Engine) showClients(ctx context.Context, s *session.Session) (Outcome, error) {
	d := s.Clients
	found, err := e.repo.SearchClients(ctx, d.Term, e.searchLimit)
	if err != nil {
		return Outcome{}, err
	}
	if len(found) == 0 {
		s.Step = session.StepIdle
		if d.Term != "" {
			return Outcome{Reply: fmt.Sprintf("❌ No se encontraron clientes con \"%s\".", d.Term)}, nil
		}
		return Outcome{Reply: "❌ No se encontraron clientes."}, nil
	}

	d.Candidates = make([]session.ClientRef, 0, len(found))
	counts := make([]int, 0, len(found))
	for _, c := range found {
		d.Candidates = append(d.Candidates, clientRef(c.Client))
		counts = append(counts, c.SubscriptionCount)
	}
	s.Step = session.StepClientsPick
	return Outcome{Reply: clientList(d.Candidates, counts)}, nil
}

func (e *Engine) clientsPick(_ context.Context, s *session.Session, in Input) (Outcome, error) {
	d := s.Clients
	i, ok := pick(in.Text, len(d.Candidates))
	if !ok {
		return Outcome{}, invalidInput("❌ " + textInvalidNumber)
	}
	d.Client = d.Candidates[i]
	s.Step = session.StepClientsAction
	return Outcome{Reply: clientActionMenu(d.Client)}, nil
}

func (e *Engine) clientsAction(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	d := s.Clients
	switch option(in.Text) {
	case clientBack:
		return e.showClients(ctx, s)

	case clientSale:
		return startSaleFor(s, d.Client), nil

	case clientSubs:
		return e.showClientSubs(ctx, s)

	case clientDelete:
		s.Step = session.StepClientsConfirmDelete
		return Outcome{Reply: fmt.Sprintf("⚠️ ¿Eliminar a *%s* y todas sus suscripciones?\nResponde *SI*.", d.Client.Name)}, nil

	case clientResend:
		return e.resendInfo(ctx, s)

	case clientEditName:
		s.Step = session.StepClientsEditName
		return Outcome{Reply: "Nuevo *Nombre* del cliente:"}, nil

	case clientEditPhone:
		s.Step = session.StepClientsEditPhone
		return Outcome{Reply: "Nuevo *Teléfono* del cliente:"}, nil
	}
	return Outcome{}, invalidInput("❌ Opción no válida. Responde con un número del 0 al 6.")
}

func (e *Engine) showClientSubs(ctx context.Context, s *session.Session) (Outcome, error) {
	d := s.Clients
	subs, err := e.repo.ListClientSubscriptions(ctx, d.Client.ID)
	if err != nil {
		return Outcome{}, err
	}
	if len(subs) == 0 {
		if s.Step == session.StepClientsAction {
			return Outcome{}, invalidInput(textNoSubs)
		}
		// из меню подписки возвращаемся в меню клиента
		d.Subscriptions = nil
		s.Step = session.StepClientsAction
		return Outcome{Reply: textNoSubs + "\n\n" + clientActionMenu(d.Client)}, nil
	}
	d.Subscriptions = subRefs(subs)
	s.Step = session.StepClientsPickSub
	return Outcome{Reply: clientSubsList(d.Client.Name, d.Subscriptions)}, nil
}

// resendInfo отправляет клиенту сводку по всем его активным подпискам.
func (e *Engine) resendInfo(ctx context.Context, s *session.Session) (Outcome, error) {
	const op = "flow.resendInfo"
	d := s.Clients

	subs, err := e.repo.ListClientSubscriptions(ctx, d.Client.ID)
	if err != nil {
		return Outcome{}, err
	}
	if len(subs) == 0 {
		return Outcome{}, invalidInput("❌ No hay información para reenviar.")
	}

	s.Step = session.StepIdle
	if err := e.notifier.Notify(ctx, d.Client.Phone, resendText(d.Client.Name, subs)); err != nil {
		e.log.Warn("info not delivered", sl.Op(op), sl.Chat(s.ChatID), sl.Err(err))
		return Outcome{Reply: "❌ Error al enviar mensaje al cliente."}, nil
	}
	return Outcome{Reply: fmt.Sprintf("✅ Información reenviada a *%s*.", d.Client.Name)}, nil
}

func (e *Engine) clientsPickSub(_ context.Context, s *session.Session, in Input) (Outcome, error) {
	d := s.Clients
	if isBack(in.Text) {
		s.Step = session.StepClientsAction
		return Outcome{Reply: clientActionMenu(d.Client)}, nil
	}
	i, ok := pick(in.Text, len(d.Subscriptions))
	if !ok {
		return Outcome{}, invalidInput("❌ " + textInvalidNumber)
	}
	d.Subscription = d.Subscriptions[i]
	s.Step = session.StepClientsSubAction
	return Outcome{Reply: subDetails(d.Subscription)}, nil
}

func (e *Engine) clientsSubAction(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	d := s.Clients
	switch option(in.Text) {
	case clientSubBack:
		return e.showClientSubs(ctx, s)

	case clientSubRenew:
		s.Renewal = &session.RenewalDraft{Client: d.Client, Subscription: d.Subscription}
		s.Clients = nil
		s.Step = session.StepRenewMonths
		return Outcome{Reply: fmt.Sprintf("Renovando *%s*.\n\n%s", d.Subscription.ServiceName, promptMonths)}, nil

	case clientSubDelete:
		err := e.repo.DeleteSubscription(ctx, d.Subscription.ID)
		s.Step = session.StepIdle
		if errors.Is(err, repository.ErrNotFound) {
			return Outcome{Reply: textSubMissing}, nil
		}
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Reply: "✅ Suscripción eliminada."}, nil
	}
	return Outcome{}, invalidInput(textInvalidOption)
}

func (e *Engine) clientsConfirmDelete(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	const op = "flow.clientsConfirmDelete"
	d := s.Clients
	s.Step = session.StepIdle
	if !isYes(in.Text) {
		return Outcome{Reply: textAborted}, nil
	}

	err := e.repo.DeleteClient(ctx, d.Client.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return Outcome{Reply: textClientMissing}, nil
	}
	if err != nil {
		return Outcome{}, err
	}
	e.log.Info("client deleted", sl.Op(op), sl.Chat(s.ChatID), slog.Int64("client_id", d.Client.ID))
	return Outcome{Reply: fmt.Sprintf("✅ Cliente *%s* eliminado correctamente.", d.Client.Name)}, nil
}

func (e *Engine) clientsEditName(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	if utf8.RuneCountInString(in.Text) < 2 {
		return Outcome{}, invalidInput(textShortName)
	}
	d := s.Clients
	if err := e.updateClient(ctx, s, d.Client.ID, in.Text, d.Client.Phone); err != nil {
		return Outcome{}, err
	}
	if s.Done() {
		return Outcome{Reply: textClientMissing}, nil
	}
	s.Step = session.StepIdle
	return Outcome{Reply: "✅ Nombre actualizado."}, nil
}

func (e *Engine) clientsEditPhone(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	phone, err := normalize.Phone(in.Text, e.country(ctx))
	if err != nil {
		return Outcome{}, invalidInput(textPhoneInvalid)
	}
	d := s.Clients
	if err := e.updateClient(ctx, s, d.Client.ID, d.Client.Name, phone); err != nil {
		return Outcome{}, err
	}
	if s.Done() {
		return Outcome{Reply: textClientMissing}, nil
	}
	s.Step = session.StepIdle
	return Outcome{Reply: fmt.Sprintf("✅ Teléfono actualizado: %s.", phone)}, nil
}

// updateClient общий для меню клиента и меню участника аккаунта.
// Пропавший клиент завершает диалог, занятый телефон возвращает на ввод.
func (e *Engine) updateClient(ctx context.Context, s *session.Session, id int64, name, phone string) error {
	err := e.repo.UpdateClient(ctx, id, name, phone)
	switch {
	case errors.Is(err, repository.ErrPhoneTaken):
		return invalidInput(textPhoneTaken)
	case errors.Is(err, repository.ErrNotFound):
		s.Step = session.StepIdle
		return nil
	}
	return err
}
