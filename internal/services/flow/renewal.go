package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/magabrotheeeer/streaming-reseller/internal/lib/month"
	"github.com/magabrotheeeer/streaming-reseller/internal/lib/normalize"
	"github.com/magabrotheeeer/streaming-reseller/internal/lib/sl"
	"github.com/magabrotheeeer/streaming-reseller/internal/models"
	"github.com/magabrotheeeer/streaming-reseller/internal/session"
	"github.com/magabrotheeeer/streaming-reseller/internal/storage/repository"
)

// MaxRenewMonths верхняя граница продления за один раз.
const MaxRenewMonths = 36

// startRenewal принимает телефон или строку поиска прямо в аргументах команды.
func (e *Engine) startRenewal(ctx context.Context, s *session.Session, args string) (Outcome, error) {
	s.Renewal = &session.RenewalDraft{}
	s.Step = session.StepRenewClient
	if args == "" {
		return Outcome{Reply: promptRenewClient}, nil
	}
	return e.renewClient(ctx, s, Input{Text: args})
}

func (e *Engine) renewClient(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	if in.Text == "" {
		return Outcome{}, invalidInput(promptRenewClient)
	}

	term := in.Text
	if normalize.LooksLikePhone(in.Text) {
		phone, err := normalize.Phone(in.Text, e.country(ctx))
		if err != nil {
			return Outcome{}, invalidInput(textPhoneInvalid)
		}
		c, err := e.repo.GetClientByPhone(ctx, phone)
		switch {
		case err == nil:
			return e.selectRenewClient(ctx, s, clientRef(*c))
		case !errors.Is(err, repository.ErrNotFound):
			return Outcome{}, err
		}
		// номер мог быть сохранён в другом формате, ищем по местной части
		term = strings.TrimLeft(strings.Map(digitsOnly, in.Text), "0")
	}

	found, err := e.repo.SearchClients(ctx, term, e.searchLimit)
	if err != nil {
		return Outcome{}, err
	}
	switch len(found) {
	case 0:
		s.Step = session.StepIdle
		return Outcome{Reply: textClientMissing}, nil
	case 1:
		return e.selectRenewClient(ctx, s, clientRef(found[0].Client))
	}

	candidates := make([]session.ClientRef, 0, len(found))
	for _, c := range found {
		candidates = append(candidates, clientRef(c.Client))
	}
	s.Renewal.Candidates = candidates
	s.Step = session.StepRenewPickClient
	return Outcome{Reply: candidatesMenu(candidates)}, nil
}

func digitsOnly(r rune) rune {
	if r >= '0' && r <= '9' {
		return r
	}
	return -1
}

func (e *Engine) renewPickClient(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	i, ok := pick(in.Text, len(s.Renewal.Candidates))
	if !ok {
		return Outcome{}, invalidInput(textInvalidNumber)
	}
	return e.selectRenewClient(ctx, s, s.Renewal.Candidates[i])
}

func (e *Engine) selectRenewClient(ctx context.Context, s *session.Session, c session.ClientRef) (Outcome, error) {
	subs, err := e.repo.ListClientSubscriptions(ctx, c.ID)
	if err != nil {
		return Outcome{}, err
	}
	d := s.Renewal
	d.Client = c
	d.Candidates = nil

	switch len(subs) {
	case 0:
		s.Step = session.StepIdle
		return Outcome{Reply: textNoSubs}, nil
	case 1:
		d.Subscription = subRef(subs[0])
		s.Step = session.StepRenewMonths
		return Outcome{Reply: fmt.Sprintf("Suscripción: *%s* (Vence: %s)\n\n%s",
			subs[0].ServiceName, normalize.ISODate(subs[0].ExpiryDate), promptMonths)}, nil
	}

	d.Subscriptions = subRefs(subs)
	s.Step = session.StepRenewPickSub
	return Outcome{Reply: renewSubsMenu(c.Name, d.Subscriptions)}, nil
}

func (e *Engine) renewPickSub(_ context.Context, s *session.Session, in Input) (Outcome, error) {
	d := s.Renewal
	i, ok := pick(in.Text, len(d.Subscriptions))
	if !ok {
		return Outcome{}, invalidInput(textInvalidNumber)
	}
	d.Subscription = d.Subscriptions[i]
	d.Subscriptions = nil
	s.Step = session.StepRenewMonths
	return Outcome{Reply: fmt.Sprintf("Has seleccionado: *%s*.\n\n%s", d.Subscription.ServiceName, promptMonths)}, nil
}

// renewMonths считает новую дату от более поздней из (текущее окончание, сегодня)
// и просит подтверждения.
func (e *Engine) renewMonths(_ context.Context, s *session.Session, in Input) (Outcome, error) {
	months, err := strconv.Atoi(in.Text)
	if err != nil || months < 1 || months > MaxRenewMonths {
		return Outcome{}, invalidInput(textBadMonths)
	}

	d := s.Renewal
	d.Months = months
	d.NewExpiry = month.Extend(d.Subscription.ExpiryDate, e.today(), months)
	s.Step = session.StepRenewConfirm
	return Outcome{Reply: renewConfirmPrompt(d)}, nil
}

func (e *Engine) renewConfirm(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	const op = "flow.renewConfirm"
	log := e.log.With(sl.Op(op), sl.Chat(s.ChatID))

	d := s.Renewal
	if !isYes(in.Text) && !strings.EqualFold(strings.TrimSpace(in.Text), "aceptar") {
		s.Step = session.StepIdle
		return Outcome{Reply: textRenewAborted}, nil
	}

	expiry := d.NewExpiry
	err := e.repo.UpdateSubscription(ctx, d.Subscription.ID, models.SubscriptionPatch{ExpiryDate: &expiry})
	if errors.Is(err, repository.ErrNotFound) {
		s.Step = session.StepIdle
		return Outcome{Reply: textSubMissing}, nil
	}
	if err != nil {
		return Outcome{}, err
	}
	d.Subscription.ExpiryDate = expiry
	s.Step = session.StepIdle
	log.Info("subscription renewed",
		slog.Int64("subscription_id", d.Subscription.ID),
		slog.Int("months", d.Months),
		slog.String("expiry", normalize.ISODate(expiry)))

	head := fmt.Sprintf("✅ Renovación exitosa de *%s* hasta %s", d.Client.Name, normalize.ISODate(expiry))
	if err := e.notifier.Notify(ctx, d.Client.Phone, renewalText(d.Subscription)); err != nil {
		log.Warn("renewal notice not delivered", sl.Err(err))
		return Outcome{Reply: head + ", pero ERROR al enviar mensaje."}, nil
	}
	return Outcome{Reply: head + " y mensaje enviado."}, nil
}
