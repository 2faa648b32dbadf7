package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/streaming-reseller/internal/catalog"
	"github.com/magabrotheeeer/streaming-reseller/internal/lib/normalize"
	"github.com/magabrotheeeer/streaming-reseller/internal/lib/sl"
	"github.com/magabrotheeeer/streaming-reseller/internal/models"
	"github.com/magabrotheeeer/streaming-reseller/internal/session"
	"github.com/magabrotheeeer/streaming-reseller/internal/storage/repository"
)

// SaleDays срок новой подписки.
const SaleDays = 30

func (e *Engine) startSale(_ context.Context, s *session.Session, _ string) (Outcome, error) {
	s.Sale = &session.SaleDraft{}
	s.Step = session.StepSaleCategory
	return Outcome{Reply: categoryMenu(nil)}, nil
}

// startSaleFor продажа клиенту, выбранному в меню клиентов.
func startSaleFor(s *session.Session, c session.ClientRef) Outcome {
	s.Clients = nil
	s.Sale = &session.SaleDraft{Client: c, ClientFixed: true}
	s.Step = session.StepSaleCategory
	return Outcome{Reply: categoryMenu(&c)}
}

// startSaleOn продажа ещё одного места на существующем аккаунте.
func startSaleOn(s *session.Session, platform catalog.Platform, email, password string) Outcome {
	s.Account = nil
	s.Sale = &session.SaleDraft{
		Category:     string(platform.Category),
		Platform:     platform.Name,
		Email:        email,
		Password:     password,
		AccountFixed: true,
	}
	s.Step = session.StepSaleClient
	return Outcome{Reply: fmt.Sprintf("Agregando usuario a *%s* (%s).\n\nIngresa *Nombre* y *Teléfono* del nuevo cliente.\nEjemplo: Juan 0991234567",
		platform.Name, email)}
}

func (e *Engine) saleCategory(_ context.Context, s *session.Session, in Input) (Outcome, error) {
	categories := catalog.Categories()
	i, ok := pick(in.Text, len(categories))
	if !ok {
		return Outcome{}, invalidInput(textInvalidOption)
	}
	s.Sale.Category = string(categories[i])
	s.Step = session.StepSalePlatform
	return Outcome{Reply: platformMenu(categories[i])}, nil
}

func (e *Engine) salePlatform(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	d := s.Sale
	if isBack(in.Text) {
		s.Step = session.StepSaleCategory
		if d.ClientFixed {
			return Outcome{Reply: categoryMenu(&d.Client)}, nil
		}
		return Outcome{Reply: categoryMenu(nil)}, nil
	}

	p, ok := catalog.ByID(option(in.Text))
	if !ok || string(p.Category) != d.Category {
		return Outcome{}, invalidInput(textInvalidOption)
	}
	d.Platform = p.Name

	if !d.ClientFixed {
		s.Step = session.StepSaleClient
		return Outcome{Reply: clientPrompt(p.Name)}, nil
	}
	if d.AccountFixed {
		return e.checkCapacity(ctx, s)
	}
	s.Step = session.StepSaleCredentials
	return Outcome{Reply: credentialsPrompt(d.Client)}, nil
}

func (e *Engine) saleClient(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	name, phone, err := normalize.ExtractNamePhone(in.Text, e.country(ctx))
	switch {
	case errors.Is(err, normalize.ErrNoName):
		return Outcome{}, invalidInput(textNoName)
	case err != nil:
		return Outcome{}, invalidInput(textBadPhone)
	}

	d := s.Sale
	d.Client = session.ClientRef{Name: name, Phone: phone}
	if d.AccountFixed {
		return e.checkCapacity(ctx, s)
	}
	s.Step = session.StepSaleCredentials
	return Outcome{Reply: credentialsPrompt(d.Client)}, nil
}

func (e *Engine) saleCredentials(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	email, password, err := normalize.Credentials(in.Text)
	if err != nil {
		return Outcome{}, invalidInput(textBadCreds)
	}
	s.Sale.Email = email
	s.Sale.Password = password
	return e.checkCapacity(ctx, s)
}

// checkCapacity считает занятые места на (платформа, email); при
// заполненном аккаунте требует подтверждения перепродажи.
func (e *Engine) checkCapacity(ctx context.Context, s *session.Session) (Outcome, error) {
	d := s.Sale
	count, err := e.repo.GetSubscriptionCount(ctx, d.Platform, d.Email)
	if err != nil {
		return Outcome{}, err
	}
	limit := catalog.Limit(d.Platform)
	if count >= limit {
		s.Step = session.StepSaleOverbooking
		return Outcome{Reply: overbookingAlert(d.Email, count, limit)}, nil
	}
	return e.checkCost(ctx, s)
}

func (e *Engine) saleOverbooking(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	d := s.Sale
	switch {
	case isYes(in.Text):
		d.Overbooked = true
		return e.checkCost(ctx, s)
	case isNo(in.Text):
		if d.AccountFixed {
			s.Step = session.StepIdle
			return Outcome{Reply: "❌ Venta cancelada. La cuenta está llena."}, nil
		}
		d.Email, d.Password = "", ""
		s.Step = session.StepSaleCredentials
		return Outcome{Reply: "Ingresa un *Correo* y *Contraseña* diferentes."}, nil
	default:
		return Outcome{}, invalidInput(textAnswerYesNo)
	}
}

// checkCost спрашивает себестоимость, только если для email её ещё нет.
func (e *Engine) checkCost(ctx context.Context, s *session.Session) (Outcome, error) {
	_, err := e.repo.GetAccountCost(ctx, s.Sale.Email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		s.Step = session.StepSaleCost
		return Outcome{Reply: costPrompt(s.Sale.Email)}, nil
	case err != nil:
		return Outcome{}, err
	}
	return e.askProfile(s), nil
}

func (e *Engine) saleCost(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	cost, err := normalize.Money(in.Text)
	if err != nil {
		return Outcome{}, invalidInput(textBadAmount)
	}
	d := s.Sale
	err = e.repo.SetAccountCost(ctx, models.AccountCost{
		Email:       d.Email,
		ServiceName: d.Platform,
		CostPrice:   cost,
		BoughtDate:  e.today(),
	})
	if err != nil {
		return Outcome{}, err
	}
	return e.askProfile(s), nil
}

func (e *Engine) askProfile(s *session.Session) Outcome {
	d := s.Sale
	if catalog.RequiresProfile(d.Platform) {
		s.Step = session.StepSaleProfile
		return Outcome{Reply: promptProfile}
	}
	d.ProfileName = normalize.NotAvailable
	d.ProfilePin = normalize.NotAvailable
	s.Step = session.StepSalePrice
	return Outcome{Reply: pricePrompt(d.Platform)}
}

func (e *Engine) saleProfile(_ context.Context, s *session.Session, in Input) (Outcome, error) {
	profile, pin, err := normalize.ProfilePin(in.Text)
	if err != nil {
		return Outcome{}, invalidInput(textBadProfile)
	}
	s.Sale.ProfileName = profile
	s.Sale.ProfilePin = pin
	s.Step = session.StepSalePrice
	return Outcome{Reply: pricePrompt(s.Sale.Platform)}, nil
}

func (e *Engine) salePrice(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	var price float64
	if strings.EqualFold(in.Text, "ok") {
		p, ok := catalog.ByName(s.Sale.Platform)
		if !ok {
			return Outcome{}, invalidInput(textBadAmount)
		}
		price = p.Price
	} else {
		v, err := normalize.Money(in.Text)
		if err != nil {
			return Outcome{}, invalidInput(textBadAmount)
		}
		price = v
	}
	return e.finishSale(ctx, s, price)
}

// finishSale создаёт клиента при необходимости, записывает подписку,
// закрывает сессию и пытается отправить чек клиенту.
func (e *Engine) finishSale(ctx context.Context, s *session.Session, price float64) (Outcome, error) {
	const op = "flow.finishSale"
	log := e.log.With(sl.Op(op), sl.Chat(s.ChatID))
	d := s.Sale

	client := d.Client
	if !d.ClientFixed || client.ID == 0 {
		c, created, err := e.repo.AddClient(ctx, client.Phone, client.Name)
		if err != nil {
			return Outcome{}, err
		}
		if created {
			log.Info("client created", slog.Int64("client_id", c.ID))
		}
		client = clientRef(*c)
	}

	sub := models.Subscription{
		ClientID:      client.ID,
		ServiceName:   d.Platform,
		ExpiryDate:    e.today().AddDate(0, 0, SaleDays),
		Email:         d.Email,
		Password:      d.Password,
		ProfileName:   d.ProfileName,
		ProfilePin:    d.ProfilePin,
		SalePrice:     price,
		IsFullAccount: catalog.Limit(d.Platform) == 1,
		IsActive:      true,
	}
	id, err := e.repo.AddSubscription(ctx, sub)
	if err != nil {
		return Outcome{}, err
	}
	sub.ID = id
	e.metrics.Sale()
	s.Step = session.StepIdle
	log.Info("sale registered",
		slog.Int64("subscription_id", id),
		slog.String("service", sub.ServiceName),
		slog.Bool("overbooked", d.Overbooked))

	if err := e.notifier.Notify(ctx, client.Phone, receiptText(client.Name, sub)); err != nil {
		log.Warn("receipt not delivered", sl.Err(err))
		return Outcome{Reply: "✅ Venta registrada, pero ERROR al notificar."}, nil
	}
	return Outcome{Reply: fmt.Sprintf("✅ Venta registrada y notificado a %s.", client.Name)}, nil
}
