package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/magabrotheeeer/streaming-reseller/internal/catalog"
	"github.com/magabrotheeeer/streaming-reseller/internal/lib/normalize"
	"github.com/magabrotheeeer/streaming-reseller/internal/lib/sl"
	"github.com/magabrotheeeer/streaming-reseller/internal/models"
	"github.com/magabrotheeeer/streaming-reseller/internal/services/flow"
	"github.com/magabrotheeeer/streaming-reseller/internal/services/license"
	"github.com/magabrotheeeer/streaming-reseller/internal/storage/repository"
)

// Канонические имена команд.
const (
	cmdHelp      = "help"
	cmdSell      = "vender"
	cmdRenew     = "renew"
	cmdClients   = "clients"
	cmdList      = "list"
	cmdEmail     = "correo"
	cmdUpdate    = "update"
	cmdUpdateAll = "updateall"
	cmdDelete    = "delete"
	cmdBroadcast = "broadcast"
	cmdImport    = "import"
	cmdExpiring  = "vencen"
	cmdReport    = "reporte"
	cmdCountry   = "pais"
	cmdActivate  = license.CommandActivate
	cmdGenKey    = license.CommandGenKey
	cmdLicense   = "licencia"
	cmdOff       = "off"
	cmdOn        = "on"
	cmdCancel    = "cancel"
)

// aliases синонимы команд.
var aliases = map[string]string{
	"ayuda":          cmdHelp,
	"menu":           cmdHelp,
	"h":              cmdHelp,
	"venta":          cmdSell,
	"v":              cmdSell,
	"sell":           cmdSell,
	"renovar":        cmdRenew,
	"r":              cmdRenew,
	"clientes":       cmdClients,
	"c":              cmdClients,
	"lista":          cmdList,
	"l":              cmdList,
	"email":          cmdEmail,
	"mail":           cmdEmail,
	"actualizar":     cmdUpdate,
	"u":              cmdUpdate,
	"actualizartodo": cmdUpdateAll,
	"eliminar":       cmdDelete,
	"borrar":         cmdDelete,
	"difusion":       cmdBroadcast,
	"masivo":         cmdBroadcast,
	"importar":       cmdImport,
	"expiring":       cmdExpiring,
	"ganancias":      cmdReport,
	"report":         cmdReport,
	"country":        cmdCountry,
	"activate":       cmdActivate,
	"generar":        cmdGenKey,
	"license":        cmdLicense,
	"silencio":       cmdOff,
	"despertar":      cmdOn,
	"cancelar":       cmdCancel,
	"x":              cmdCancel,
}

type command func(ctx context.Context, req *request) (string, error)

func (d *Dispatcher) commandTable() map[string]command {
	return map[string]command{
		cmdHelp:      d.help,
		cmdSell:      d.startFlow(flow.KindSale),
		cmdRenew:     d.startFlow(flow.KindRenewal),
		cmdClients:   d.startFlow(flow.KindClients),
		cmdList:      d.startFlow(flow.KindList),
		cmdEmail:     d.startFlow(flow.KindEmail),
		cmdBroadcast: d.startFlow(flow.KindBroadcast),
		cmdImport:    d.startFlow(flow.KindImport),
		cmdUpdate:    d.update,
		cmdUpdateAll: d.updateAll,
		cmdDelete:    d.deleteClient,
		cmdExpiring:  d.expiring,
		cmdReport:    d.report,
		cmdCountry:   d.setCountry,
		cmdActivate:  d.activate,
		cmdGenKey:    d.genKey,
		cmdLicense:   d.licenseStatus,
		cmdOff:       d.silence(true),
		cmdOn:        d.silence(false),
		cmdCancel:    d.cancel,
	}
}

const helpText = "╭━━━━━━━━━━━━━━━━━━╮\n" +
	"   🤖 *MENÚ PRINCIPAL*\n" +
	"╰━━━━━━━━━━━━━━━━━━╯\n\n" +
	"🛒 *!vender* - Nueva suscripción\n" +
	"🔄 *!renew* - Renovar suscripción\n" +
	"👥 *!clients* - Gestión de Clientes\n" +
	"📋 *!list* - Ver cuentas por plataforma\n" +
	"📧 *!correo* - Buscar por email\n" +
	"✏️ *!update* - Actualizar suscripción\n" +
	"🔁 *!updateall* - Cambiar credenciales de un correo\n" +
	"🗑️ *!delete* - Eliminar cliente\n" +
	"📢 *!broadcast* - Mensaje a todos los clientes\n" +
	"📥 *!import* - Importar clientes\n" +
	"📅 *!vencen* - Próximos vencimientos\n" +
	"💰 *!reporte* - Resumen financiero\n" +
	"🔒 *!licencia* - Estado de la licencia\n" +
	"❌ *!cancel* - Cancelar operación"

func (d *Dispatcher) help(context.Context, *request) (string, error) {
	return helpText, nil
}

func (d *Dispatcher) startFlow(kind flow.Kind) command {
	return func(ctx context.Context, req *request) (string, error) {
		out, err := d.flows.Start(ctx, req.chatID, kind, req.rawArgs)
		if err != nil {
			return "", err
		}
		return out.Reply, nil
	}
}

func (d *Dispatcher) cancel(context.Context, *request) (string, error) {
	// активную сессию закрывает Dispatch до вызова команды
	return textNoActive, nil
}

// update меняет данные одной подписки клиента и отправляет их клиенту.
// Номер, разбитый пробелом ("099 1234567"), склеивается.
func (d *Dispatcher) update(ctx context.Context, req *request) (string, error) {
	const usage = "Uso: !update [telefono] [servicio] [nuevo_email] [nuevo_pass] [perfil] [pin]"
	args := req.args
	if len(args) < 6 {
		return usage, nil
	}
	rawPhone := args[0]
	if len(args) > 6 && len(args[0]) < 7 && isDigits(args[1]) {
		rawPhone += args[1]
		args = args[1:]
	}
	phone, err := normalize.Phone(rawPhone, d.country(ctx))
	if err != nil {
		return "❌ Número de teléfono inválido.", nil
	}
	service, email, password, profile, pin := args[1], normalize.Email(args[2]), args[3], args[4], args[5]
	if p, ok := catalog.ByName(service); ok {
		service = p.Name
	}

	client, err := d.repo.GetClientByPhone(ctx, phone)
	if errors.Is(err, repository.ErrNotFound) {
		return "❌ No se encontró cliente o servicio activo.", nil
	}
	if err != nil {
		return "", err
	}
	subs, err := d.repo.ListClientSubscriptions(ctx, client.ID)
	if err != nil {
		return "", err
	}
	var target *models.Subscription
	for i := range subs {
		if strings.EqualFold(subs[i].ServiceName, service) {
			target = &subs[i]
			break
		}
	}
	if target == nil {
		return "❌ No se encontró cliente o servicio activo.", nil
	}

	err = d.repo.UpdateSubscription(ctx, target.ID, models.SubscriptionPatch{
		Email:       &email,
		Password:    &password,
		ProfileName: &profile,
		ProfilePin:  &pin,
	})
	if errors.Is(err, repository.ErrNotFound) {
		return "❌ No se encontró cliente o servicio activo.", nil
	}
	if err != nil {
		return "", err
	}

	text := "╭━━━━━━━━━━━━━━━━━━╮\n   ✨ *DATOS ACTUALIZADOS*\n╰━━━━━━━━━━━━━━━━━━╯\n" +
		fmt.Sprintf("📺 *Servicio:* %s\n📧 *Email:* %s\n🔑 *Pass:* %s\n👤 *Perfil:* %s\n🔒 *PIN:* %s",
			target.ServiceName, email, password, profile, pin)
	if err := d.notifier.Notify(ctx, phone, text); err != nil {
		d.log.Warn("update notice not delivered", sl.Chat(req.chatID), sl.Err(err))
		return fmt.Sprintf("✅ Datos actualizados, pero ERROR al notificar a %s.", phone), nil
	}
	return fmt.Sprintf("✅ Datos actualizados y notificado a %s.", phone), nil
}

func (d *Dispatcher) updateAll(ctx context.Context, req *request) (string, error) {
	if len(req.args) < 3 {
		return "Uso: !updateall [viejo_email] [nuevo_email] [nuevo_pass]", nil
	}
	oldEmail, newEmail, newPassword := normalize.Email(req.args[0]), normalize.Email(req.args[1]), strings.Join(req.args[2:], " ")

	affected, err := d.repo.UpdateBulkSubscriptions(ctx, oldEmail, newEmail, newPassword)
	if err != nil {
		return "", err
	}
	queued := 0
	if len(affected) > 0 {
		queued = d.notifier.Enqueue(ctx, flow.UpdateNotifications(affected, newEmail, newPassword)...)
	}
	return fmt.Sprintf("✅ %d suscripciones actualizadas. Notificados: %d.", len(affected), queued), nil
}

func (d *Dispatcher) deleteClient(ctx context.Context, req *request) (string, error) {
	if len(req.args) == 0 {
		return "Uso: !delete [telefono]", nil
	}
	phone, err := normalize.Phone(strings.Join(req.args, ""), d.country(ctx))
	if err != nil {
		return "❌ Número inválido.", nil
	}

	client, err := d.repo.GetClientByPhone(ctx, phone)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Sprintf("❌ Cliente %s no encontrado.", phone), nil
	}
	if err != nil {
		return "", err
	}
	err = d.repo.DeleteClient(ctx, client.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Sprintf("❌ Cliente %s no encontrado.", phone), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Cliente %s eliminado.", phone), nil
}

func (d *Dispatcher) expiring(ctx context.Context, req *request) (string, error) {
	days := d.opts.ReportDays
	if len(req.args) > 0 {
		n, err := strconv.Atoi(req.args[0])
		if err != nil || n < 0 || n > 365 {
			return "Uso: !vencen [días]", nil
		}
		days = n
	}
	return d.reporter.ExpiryReport(ctx, days)
}

func (d *Dispatcher) report(ctx context.Context, _ *request) (string, error) {
	f, err := d.repo.FinancialSummary(ctx)
	if err != nil {
		return "", err
	}
	return "╭━━━━━━━━━━━━━━━━━━╮\n   💰 *REPORTE FINANCIERO*\n╰━━━━━━━━━━━━━━━━━━╯\n" +
		fmt.Sprintf("📺 Ventas registradas: %d\n", f.Subscriptions) +
		fmt.Sprintf("💵 Ingresos: $%.2f\n", f.Revenue) +
		fmt.Sprintf("📧 Cuentas compradas: %d\n", f.Accounts) +
		fmt.Sprintf("🧾 Costos: $%.2f\n", f.Cost) +
		fmt.Sprintf("📈 *Ganancia: $%.2f*", f.Profit()), nil
}

func (d *Dispatcher) setCountry(ctx context.Context, req *request) (string, error) {
	if len(req.args) == 0 {
		return fmt.Sprintf("Código de país actual: +%s\nUso: !pais [código]", d.country(ctx)), nil
	}
	code := strings.TrimPrefix(req.args[0], "+")
	if len(code) == 0 || len(code) > 4 || !isDigits(code) {
		return "❌ Código inválido. Ejemplo: !pais 593", nil
	}
	if err := d.repo.SetConfig(ctx, models.ConfigCountryCode, code); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Código de país actualizado a +%s.", code), nil
}

func (d *Dispatcher) activate(ctx context.Context, req *request) (string, error) {
	if len(req.args) == 0 {
		return "Uso: !activar <clave>", nil
	}
	expiry, err := d.gate.Activate(ctx, req.args[0])
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrLicenseUsed):
		return "❌ Clave inválida o ya utilizada.", nil
	case err != nil:
		return "", err
	}
	return fmt.Sprintf("✅ Licencia activada hasta %s.", expiry.Format("2006-01-02 15:04")), nil
}

// genKey доступна администраторам и владельцу номера бота.
func (d *Dispatcher) genKey(ctx context.Context, req *request) (string, error) {
	if !req.privileged && !req.msg.FromMe {
		return "❌ Solo un administrador puede generar claves.", nil
	}
	if len(req.args) == 0 {
		return "Uso: !genkey <días>", nil
	}
	days, err := strconv.Atoi(req.args[0])
	if err != nil || days <= 0 {
		return "Uso: !genkey <días>", nil
	}
	key, err := d.gate.Generate(ctx, days)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("🔑 Clave generada: *%s* (%d días)", key, days), nil
}

func (d *Dispatcher) licenseStatus(ctx context.Context, _ *request) (string, error) {
	st, err := d.gate.Status(ctx)
	if err != nil {
		return "", err
	}
	switch {
	case st.Expiry == nil:
		return "🔒 Sin licencia. Usa !activar <clave>.", nil
	case st.Active:
		left := int(time.Until(*st.Expiry).Hours() / 24)
		return fmt.Sprintf("✅ Licencia activa hasta %s (%d días).", st.Expiry.Format("2006-01-02"), left), nil
	default:
		return fmt.Sprintf("⚠️ Licencia vencida desde %s.", st.Expiry.Format("2006-01-02")), nil
	}
}

func (d *Dispatcher) silence(on bool) command {
	return func(ctx context.Context, _ *request) (string, error) {
		if err := d.setSilenced(ctx, on); err != nil {
			return "", err
		}
		if on {
			return "🔇 Bot silenciado. Usa !on para reactivarlo.", nil
		}
		return "🔊 Bot activo nuevamente.", nil
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
