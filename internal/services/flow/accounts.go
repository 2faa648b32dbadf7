package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/magabrotheeeer/streaming-reseller/internal/catalog"
	"github.com/magabrotheeeer/streaming-reseller/internal/lib/normalize"
	"github.com/magabrotheeeer/streaming-reseller/internal/lib/sl"
	"github.com/magabrotheeeer/streaming-reseller/internal/models"
	"github.com/magabrotheeeer/streaming-reseller/internal/session"
	"github.com/magabrotheeeer/streaming-reseller/internal/storage/repository"
)

// Пункты меню аккаунта из списка платформы.
const (
	accountBack = iota
	accountAddMember
	accountMembers
	accountDelete
	accountCredentials
	accountPassword
)

// Пункты меню участника.
const (
	memberBack = iota
	memberDelete
	memberProfile
	memberPin
	memberName
	memberPhone
	memberExpiry
)

func (e *Engine) startList(_ context.Context, s *session.Session, _ string) (Outcome, error) {
	s.Account = &session.AccountDraft{Origin: session.OriginList}
	s.Step = session.StepListPlatform
	return Outcome{Reply: listPlatformMenu()}, nil
}

func (e *Engine) listPlatform(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	p, ok := catalog.ByID(option(in.Text))
	if !ok {
		return Outcome{}, invalidInput(textInvalidOption)
	}
	s.Account.Platform = p.Name
	return e.showAccounts(ctx, s)
}

// showAccounts перечитывает аккаунты платформы и показывает список с занятостью.
func (e *Engine) showAccounts(ctx context.Context, s *session.Session) (Outcome, error) {
	d := s.Account
	accounts, err := e.repo.ListAccounts(ctx, d.Platform)
	if err != nil {
		return Outcome{}, err
	}
	if len(accounts) == 0 {
		s.Step = session.StepIdle
		return Outcome{Reply: fmt.Sprintf("No hay suscripciones activas para %s.", d.Platform)}, nil
	}

	d.Accounts = make([]session.AccountRef, 0, len(accounts))
	for _, a := range accounts {
		d.Accounts = append(d.Accounts, session.AccountRef{Email: a.Email, Password: a.Password, Occupancy: a.Occupancy()})
	}
	d.Email, d.Password, d.Members = "", "", nil
	s.Step = session.StepListAccount
	return Outcome{Reply: accountList(d.Platform, accounts)}, nil
}

func (e *Engine) listAccount(_ context.Context, s *session.Session, in Input) (Outcome, error) {
	d := s.Account
	if isBack(in.Text) {
		s.Step = session.StepListPlatform
		return Outcome{Reply: listPlatformMenu()}, nil
	}
	i, ok := pick(in.Text, len(d.Accounts))
	if !ok {
		return Outcome{}, invalidInput(textInvalidNumber)
	}
	d.Email = d.Accounts[i].Email
	d.Password = d.Accounts[i].Password
	s.Step = session.StepAccountAction
	return Outcome{Reply: accountActionMenu(d.Platform, d.Email)}, nil
}

func (e *Engine) accountAction(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	d := s.Account
	switch option(in.Text) {
	case accountBack:
		return e.showAccounts(ctx, s)

	case accountAddMember:
		p, ok := catalog.ByName(d.Platform)
		if !ok {
			s.Step = session.StepIdle
			return Outcome{Reply: "❌ Error: Plataforma no reconocida."}, nil
		}
		return startSaleOn(s, p, d.Email, d.Password), nil

	case accountMembers:
		return e.showMembers(ctx, s)

	case accountDelete:
		s.Step = session.StepAccountConfirmDelete
		return Outcome{Reply: deleteGroupPrompt(d.Email)}, nil

	case accountCredentials:
		s.Step = session.StepAccountNewCredentials
		return Outcome{Reply: promptNewCreds}, nil

	case accountPassword:
		s.Step = session.StepAccountNewPassword
		return Outcome{Reply: promptNewPassword}, nil
	}
	return Outcome{}, invalidInput(textInvalidOption)
}

// startEmail открывает группу подписок по email.
func (e *Engine) startEmail(ctx context.Context, s *session.Session, args string) (Outcome, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return Outcome{Reply: "Uso: !correo [email]"}, nil
	}
	email := normalize.Email(fields[0])

	s.Account = &session.AccountDraft{Origin: session.OriginEmail, Email: email}
	members, err := e.loadMembers(ctx, s.Account)
	if err != nil {
		return Outcome{}, err
	}
	if len(members) == 0 {
		return Outcome{Reply: fmt.Sprintf("❌ No se encontraron suscripciones para %s.", email)}, nil
	}
	s.Account.Members = members
	s.Step = session.StepEmailMenu
	return Outcome{Reply: emailMenu(email, members)}, nil
}

func (e *Engine) emailMenu(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	d := s.Account
	switch strings.ToUpper(in.Text) {
	case "A":
		s.Step = session.StepAccountNewPassword
		return Outcome{Reply: promptNewPassword}, nil
	case "B":
		s.Step = session.StepAccountNewCredentials
		return Outcome{Reply: promptNewCreds}, nil
	case "C":
		s.Step = session.StepAccountConfirmDelete
		return Outcome{Reply: deleteGroupPrompt(d.Email)}, nil
	case "D":
		return e.showMembers(ctx, s)
	case "0":
		s.Step = session.StepIdle
		return Outcome{Reply: textCancelled}, nil
	}
	return Outcome{}, invalidInput("Opción no válida. Responde con A, B, C, D o X.")
}

// loadMembers участники группы: для списка платформы совпадают платформа и
// пароль, для поиска по email берутся все подписки адреса.
func (e *Engine) loadMembers(ctx context.Context, d *session.AccountDraft) ([]session.MemberRef, error) {
	subs, err := e.repo.GetSubscriptionsByEmail(ctx, d.Email)
	if err != nil {
		return nil, err
	}
	members := make([]session.MemberRef, 0, len(subs))
	for _, sub := range subs {
		if d.Origin == session.OriginList && (sub.ServiceName != d.Platform || sub.Password != d.Password) {
			continue
		}
		members = append(members, memberRef(sub))
	}
	return members, nil
}

func (e *Engine) showMembers(ctx context.Context, s *session.Session) (Outcome, error) {
	d := s.Account
	members, err := e.loadMembers(ctx, d)
	if err != nil {
		return Outcome{}, err
	}
	if len(members) == 0 {
		s.Step = session.StepIdle
		return Outcome{Reply: fmt.Sprintf("No quedan usuarios activos en %s.", d.Email)}, nil
	}
	d.Members = members
	s.Step = session.StepAccountPickMember
	return Outcome{Reply: memberList(d.Email, members)}, nil
}

// accountMenu возвращает к меню, из которого открыт аккаунт.
func (e *Engine) accountMenu(ctx context.Context, s *session.Session) (Outcome, error) {
	d := s.Account
	if d.Origin == session.OriginList {
		s.Step = session.StepAccountAction
		return Outcome{Reply: accountActionMenu(d.Platform, d.Email)}, nil
	}
	members, err := e.loadMembers(ctx, d)
	if err != nil {
		return Outcome{}, err
	}
	if len(members) == 0 {
		s.Step = session.StepIdle
		return Outcome{Reply: fmt.Sprintf("No quedan usuarios activos en %s.", d.Email)}, nil
	}
	d.Members = members
	s.Step = session.StepEmailMenu
	return Outcome{Reply: emailMenu(d.Email, members)}, nil
}

func (e *Engine) accountNewPassword(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	if in.Text == "" {
		return Outcome{}, invalidInput(textEmptyValue)
	}
	return e.replaceCredentials(ctx, s, s.Account.Email, in.Text, "Contraseña actualizada")
}

func (e *Engine) accountNewCredentials(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	email, password, err := normalize.Credentials(in.Text)
	if err != nil {
		return Outcome{}, invalidInput(textBadCreds)
	}
	return e.replaceCredentials(ctx, s, email, password, "Credenciales actualizadas")
}

// replaceCredentials меняет данные на всех подписках с email группы и
// ставит в очередь уведомление каждому затронутому клиенту.
func (e *Engine) replaceCredentials(ctx context.Context, s *session.Session, email, password, done string) (Outcome, error) {
	const op = "flow.replaceCredentials"
	d := s.Account

	affected, err := e.repo.UpdateBulkSubscriptions(ctx, d.Email, email, password)
	if err != nil {
		return Outcome{}, err
	}
	s.Step = session.StepIdle
	e.log.Info("group credentials replaced", sl.Op(op), sl.Chat(s.ChatID),
		slog.String("old_email", d.Email), slog.String("new_email", email), slog.Int("affected", len(affected)))

	notes := UpdateNotifications(affected, email, password)
	return Outcome{
		Reply:         fmt.Sprintf("✅ %s en %d suscripciones. Notificaciones en cola: %d.", done, len(affected), len(notes)),
		Notifications: notes,
	}, nil
}

// UpdateNotifications по уведомлению на каждую затронутую подписку.
func UpdateNotifications(affected []models.AffectedClient, email, password string) []models.Notification {
	notes := make([]models.Notification, 0, len(affected))
	for _, a := range affected {
		notes = append(notes, models.Notification{
			To:   a.Phone,
			Text: UpdateText(a, email, password),
			Kind: models.NotifyUpdate,
		})
	}
	return notes
}

func (e *Engine) accountConfirmDelete(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	const op = "flow.accountConfirmDelete"
	d := s.Account
	s.Step = session.StepIdle
	if !isYes(in.Text) {
		return Outcome{Reply: textAborted}, nil
	}

	affected, err := e.repo.DeleteSubscriptionsByEmail(ctx, d.Email)
	if err != nil {
		return Outcome{}, err
	}
	e.log.Info("group deleted", sl.Op(op), sl.Chat(s.ChatID),
		slog.String("email", d.Email), slog.Int("affected", len(affected)))
	return Outcome{Reply: fmt.Sprintf("✅ %d suscripciones eliminadas.", len(affected))}, nil
}

func (e *Engine) accountPickMember(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	d := s.Account
	if isBack(in.Text) {
		return e.accountMenu(ctx, s)
	}
	i, ok := pick(in.Text, len(d.Members))
	if !ok {
		return Outcome{}, invalidInput(textInvalidNumber)
	}
	d.Member = d.Members[i]
	s.Step = session.StepMemberAction
	return Outcome{Reply: memberMenu(d.Member)}, nil
}

func (e *Engine) memberAction(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	d := s.Account
	switch option(in.Text) {
	case memberBack:
		return e.showMembers(ctx, s)

	case memberDelete:
		err := e.repo.DeleteSubscription(ctx, d.Member.SubscriptionID)
		s.Step = session.StepIdle
		if errors.Is(err, repository.ErrNotFound) {
			return Outcome{Reply: textSubMissing}, nil
		}
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Reply: "✅ Usuario eliminado."}, nil

	case memberProfile:
		s.Step = session.StepMemberEditProfile
		return Outcome{Reply: "Nuevo *Nombre del Perfil*:"}, nil
	case memberPin:
		s.Step = session.StepMemberEditPin
		return Outcome{Reply: "Nuevo *PIN*:"}, nil
	case memberName:
		s.Step = session.StepMemberEditName
		return Outcome{Reply: "Nuevo *Nombre* del cliente:"}, nil
	case memberPhone:
		s.Step = session.StepMemberEditPhone
		return Outcome{Reply: "Nuevo *Teléfono* del cliente:"}, nil
	case memberExpiry:
		s.Step = session.StepMemberEditExpiry
		return Outcome{Reply: "Nueva *fecha de vencimiento* (AAAA-MM-DD o DD/MM/AAAA):"}, nil
	}
	return Outcome{}, invalidInput(textInvalidOption)
}

func (e *Engine) patchMember(ctx context.Context, s *session.Session, patch models.SubscriptionPatch, done string) (Outcome, error) {
	err := e.repo.UpdateSubscription(ctx, s.Account.Member.SubscriptionID, patch)
	s.Step = session.StepIdle
	if errors.Is(err, repository.ErrNotFound) {
		return Outcome{Reply: textSubMissing}, nil
	}
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Reply: done}, nil
}

func (e *Engine) memberEditProfile(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	if in.Text == "" {
		return Outcome{}, invalidInput(textEmptyValue)
	}
	profile := in.Text
	return e.patchMember(ctx, s, models.SubscriptionPatch{ProfileName: &profile}, "✅ Perfil actualizado.")
}

func (e *Engine) memberEditPin(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	if in.Text == "" {
		return Outcome{}, invalidInput(textEmptyValue)
	}
	pin := in.Text
	return e.patchMember(ctx, s, models.SubscriptionPatch{ProfilePin: &pin}, "✅ PIN actualizado.")
}

func (e *Engine) memberEditExpiry(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	expiry, err := normalize.Date(in.Text, e.now())
	if err != nil {
		return Outcome{}, invalidInput(textBadDate)
	}
	return e.patchMember(ctx, s, models.SubscriptionPatch{ExpiryDate: &expiry},
		fmt.Sprintf("✅ Vencimiento actualizado a %s.", normalize.ISODate(expiry)))
}

func (e *Engine) memberEditName(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	if utf8.RuneCountInString(in.Text) < 2 {
		return Outcome{}, invalidInput(textShortName)
	}
	m := s.Account.Member
	if err := e.updateClient(ctx, s, m.ClientID, in.Text, m.ClientPhone); err != nil {
		return Outcome{}, err
	}
	if s.Done() {
		return Outcome{Reply: textClientMissing}, nil
	}
	s.Step = session.StepIdle
	return Outcome{Reply: "✅ Nombre actualizado."}, nil
}

func (e *Engine) memberEditPhone(ctx context.Context, s *session.Session, in Input) (Outcome, error) {
	phone, err := normalize.Phone(in.Text, e.country(ctx))
	if err != nil {
		return Outcome{}, invalidInput(textPhoneInvalid)
	}
	m := s.Account.Member
	if err := e.updateClient(ctx, s, m.ClientID, m.ClientName, phone); err != nil {
		return Outcome{}, err
	}
	if s.Done() {
		return Outcome{Reply: textClientMissing}, nil
	}
	s.Step = session.StepIdle
	return Outcome{Reply: fmt.Sprintf("✅ Teléfono actualizado: %s.", phone)}, nil
}
