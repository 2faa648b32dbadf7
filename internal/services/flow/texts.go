package flow

import (
	"fmt"
	"strings"

	"github.com/magabrotheeeer/streaming-reseller/internal/catalog"
	"github.com/magabrotheeeer/streaming-reseller/internal/lib/normalize"
	"github.com/magabrotheeeer/streaming-reseller/internal/models"
	"github.com/magabrotheeeer/streaming-reseller/internal/session"
)

const (
	textCancelled     = "❌ Operación cancelada."
	textAborted       = "Cancelado."
	textInvalidNumber = "Número inválido."
	textInvalidOption = "❌ Opción no válida. Responde con el número."
	textAnswerYesNo   = "❌ Responde SI o NO."
	textBadPhone      = "❌ No detecté un número válido. Intenta de nuevo: Nombre y Teléfono."
	textNoName        = "❌ Falta el nombre. Intenta de nuevo: Nombre y Teléfono."
	textBadCreds      = "❌ Formato incorrecto. Correo y Contraseña separados por espacio."
	textBadAmount     = "❌ Monto inválido. Ingresa solo el número (ej. 12.50)."
	textBadProfile    = "❌ Formato incorrecto. Perfil y PIN (ej. Juan 1234)."
	textBadMonths     = "❌ Ingresa un número válido de meses (de 1 a 36)."
	textRenewAborted  = "❌ Renovación cancelada."
	textBadDate       = "❌ Fecha inválida. Usa AAAA-MM-DD o DD/MM/AAAA."
	textPhoneInvalid  = "❌ Número inválido."
	textPhoneTaken    = "❌ Ese teléfono ya pertenece a otro cliente."
	textShortName     = "❌ El nombre debe tener al menos 2 caracteres."
	textEmptyValue    = "❌ El valor no puede estar vacío."
	textClientMissing = "❌ Cliente no encontrado."
	textNoSubs        = "❌ Este cliente no tiene suscripciones activas."
	textSubMissing    = "❌ La suscripción ya no existe."

	promptCredentials = "Ahora ingresa el *Correo* y *Contraseña* de la cuenta.\nEjemplo: user@gmail.com clave123"
	promptProfile     = "Esta cuenta requiere perfil.\n\nIngresa el *Nombre del Perfil* y el *PIN*.\nEjemplo: Juan 1234"
	promptMonths      = "Ingresa el *número de meses* para renovar (ej. 1, 12):"
	promptRenewClient = "Ingresa el *número de teléfono* o el *nombre* del cliente para renovar:"
	promptNewPassword = "Ingresa la *Nueva Contraseña*:"
	promptNewCreds    = "Ingresa el *Nuevo Correo* y *Nueva Contraseña* separados por espacio:"
	promptBroadcast   = "📢 Escribe el *mensaje* que recibirán todos los clientes activos:"
	promptImport      = "📥 Envía el archivo *.csv* o *.xlsx* con las columnas:\n" +
		"telefono, nombre, servicio, email, clave, vencimiento, [pin]"
)

func box(title string) string {
	return "╭━━━━━━━━━━━━━━━━━━╮\n   " + title + "\n╰━━━━━━━━━━━━━━━━━━╯\n"
}

func pinMark(p catalog.Platform) string {
	if p.RequiresProfile {
		return "🔴"
	}
	return "🟢"
}

func categoryMenu(client *session.ClientRef) string {
	var b strings.Builder
	b.WriteString(box("🛒 *NUEVA VENTA*"))
	if client != nil {
		fmt.Fprintf(&b, "👤 Cliente: *%s*\n\n", client.Name)
	}
	b.WriteString("👇 *Selecciona la Categoría:*\n\n")
	for i, c := range catalog.Categories() {
		fmt.Fprintf(&b, "*%d.* %s\n", i+1, c)
	}
	return b.String()
}

func platformMenu(c catalog.Category) string {
	var b strings.Builder
	b.WriteString(box("🛒 *" + strings.ToUpper(string(c)) + "*"))
	b.WriteString("👇 *Selecciona la Plataforma:*\n\n")
	for _, p := range catalog.InCategory(c) {
		fmt.Fprintf(&b, "*%d.* %s %s\n", p.ID, p.Name, pinMark(p))
	}
	b.WriteString("\n*0.* 🔙 Volver")
	return b.String()
}

func listPlatformMenu() string {
	var b strings.Builder
	b.WriteString(box("📋 *VER LISTA*"))
	b.WriteString("👇 *Selecciona la Plataforma:*\n\n")
	for _, p := range catalog.All() {
		fmt.Fprintf(&b, "*%d.* %s\n", p.ID, p.Name)
	}
	return b.String()
}

func clientPrompt(platform string) string {
	return fmt.Sprintf("Has seleccionado *%s*.\n\nAhora ingresa el *Nombre* y *Teléfono* del cliente.\nEjemplo: Juan 0991234567", platform)
}

func credentialsPrompt(c session.ClientRef) string {
	return fmt.Sprintf("Cliente: %s (%s)\n\n%s", c.Name, c.Phone, promptCredentials)
}

func overbookingAlert(email string, count, limit int) string {
	return fmt.Sprintf("⚠️ *ALERTA DE CAPACIDAD*\n\nLa cuenta %s ya tiene *%d/%d* perfiles ocupados.\n\n¿Deseas continuar?\nResponde *SI* o *NO*.",
		email, count, limit)
}

func costPrompt(email string) string {
	return fmt.Sprintf("💰 La cuenta %s no tiene costo registrado.\n\nIngresa el *costo* de la cuenta (ej. 12.50):", email)
}

func pricePrompt(platform string) string {
	if p, ok := catalog.ByName(platform); ok {
		return fmt.Sprintf("💵 Ingresa el *precio de venta* o escribe *ok* para usar $%.2f:", p.Price)
	}
	return "💵 Ingresa el *precio de venta*:"
}

func hasProfile(pin string) bool {
	return pin != "" && pin != normalize.NotAvailable
}

func receiptText(name string, sub models.Subscription) string {
	var b strings.Builder
	b.WriteString(box("✨ *NUEVA CUENTA* ✨"))
	fmt.Fprintf(&b, "👤 *Cliente:* %s\n", name)
	fmt.Fprintf(&b, "📺 *Servicio:* %s\n\n", sub.ServiceName)
	fmt.Fprintf(&b, "📧 *Email:* %s\n", sub.Email)
	fmt.Fprintf(&b, "🔑 *Pass:* %s\n", sub.Password)
	if hasProfile(sub.ProfilePin) {
		fmt.Fprintf(&b, "👤 *Perfil:* %s\n", sub.ProfileName)
		fmt.Fprintf(&b, "🔒 *PIN:* %s\n", sub.ProfilePin)
	}
	fmt.Fprintf(&b, "\n📅 *Vence:* %s\n\n", normalize.ISODate(sub.ExpiryDate))
	b.WriteString("Gracias por tu compra! 🙌")
	return b.String()
}

func renewalText(sub session.SubRef) string {
	return box("✨ *RENOVACIÓN EXITOSA*") +
		fmt.Sprintf("Tu cuenta de *%s* ha sido renovada.\n\n", sub.ServiceName) +
		fmt.Sprintf("📧 *Email:* %s\n", sub.Email) +
		fmt.Sprintf("📅 *Vence:* %s\n\n", normalize.ISODate(sub.ExpiryDate)) +
		"Gracias por tu preferencia! 🙌"
}

// UpdateText сообщение клиенту о смене данных доступа.
func UpdateText(a models.AffectedClient, email, password string) string {
	var b strings.Builder
	b.WriteString(box("✨ *ACTUALIZACIÓN*"))
	fmt.Fprintf(&b, "Hola %s, tus datos de *%s* han cambiado:\n\n", a.Name, a.ServiceName)
	fmt.Fprintf(&b, "📧 *Nuevo Email:* %s\n", email)
	fmt.Fprintf(&b, "🔑 *Nueva Clave:* %s", password)
	if hasProfile(a.ProfilePin) {
		fmt.Fprintf(&b, "\n👤 *Perfil:* %s\n🔒 *PIN:* %s", a.ProfileName, a.ProfilePin)
	}
	return b.String()
}

func resendText(name string, subs []models.Subscription) string {
	var b strings.Builder
	b.WriteString(box("✨ *TUS CUENTAS* ✨"))
	fmt.Fprintf(&b, "Hola *%s*, aquí tienes tus suscripciones activas:\n", name)
	for _, s := range subs {
		fmt.Fprintf(&b, "\n📺 *%s*\n📧 %s\n🔑 %s\n📅 Vence: %s\n",
			s.ServiceName, s.Email, s.Password, normalize.ISODate(s.ExpiryDate))
		if hasProfile(s.ProfilePin) {
			fmt.Fprintf(&b, "👤 Perfil: %s | 🔒 PIN: %s\n", s.ProfileName, s.ProfilePin)
		}
	}
	b.WriteString("\nGracias por tu preferencia! 🙌")
	return b.String()
}

func clientList(clients []session.ClientRef, counts []int) string {
	var b strings.Builder
	b.WriteString(box(fmt.Sprintf("👥 *RESULTADOS (%d)*", len(clients))))
	for i, c := range clients {
		fmt.Fprintf(&b, "\n*%d.* 👤 %s (%s)", i+1, c.Name, c.Phone)
		if counts[i] > 0 {
			fmt.Fprintf(&b, "\n    📺 %d suscripción(es) activa(s)", counts[i])
		} else {
			b.WriteString("\n    ⚠️ Sin suscripciones activas")
		}
		b.WriteString("\n")
	}
	b.WriteString("\n👇 *Responde con el número para gestionar*")
	return b.String()
}

func candidatesMenu(clients []session.ClientRef) string {
	var b strings.Builder
	b.WriteString("*Clientes encontrados:*\n")
	for i, c := range clients {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, c.Name, c.Phone)
	}
	b.WriteString("\nResponde con el *número* del cliente:")
	return b.String()
}

func renewConfirmPrompt(d *session.RenewalDraft) string {
	return fmt.Sprintf("Vas a renovar a *%s* (%s)\n", d.Client.Name, d.Client.Phone) +
		fmt.Sprintf("Servicio: %s\n", d.Subscription.ServiceName) +
		fmt.Sprintf("Tiempo: %d mes(es)\n", d.Months) +
		fmt.Sprintf("Nuevo vencimiento: %s\n\n", normalize.ISODate(d.NewExpiry)) +
		"¿Estás seguro? Responde *SI* para confirmar."
}

func renewSubsMenu(name string, subs []session.SubRef) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Suscripciones de %s:*\n", name)
	for i, s := range subs {
		fmt.Fprintf(&b, "%d. %s (Vence: %s)\n", i+1, s.ServiceName, normalize.ISODate(s.ExpiryDate))
	}
	b.WriteString("\nResponde con el *número* de la suscripción a renovar:")
	return b.String()
}

func clientActionMenu(c session.ClientRef) string {
	return box("✨ *CLIENTE SELECCIONADO*") +
		fmt.Sprintf("👤 *Nombre:* %s\n📱 *Tel:* %s\n\n", c.Name, c.Phone) +
		"1️⃣  🛒 *Nueva Venta*\n" +
		"2️⃣  📋 *Ver Suscripciones*\n" +
		"3️⃣  🗑️ *Eliminar Cliente*\n" +
		"4️⃣  📤 *Reenviar Información*\n" +
		"5️⃣  ✏️ *Editar Nombre*\n" +
		"6️⃣  📱 *Editar Teléfono*\n" +
		"0️⃣  🔙 *Volver*\n\n" +
		"👇 *Responde con el número*"
}

func clientSubsList(name string, subs []session.SubRef) string {
	var b strings.Builder
	b.WriteString(box("📋 *SUSCRIPCIONES*"))
	fmt.Fprintf(&b, "👤 *%s*\n", name)
	for i, s := range subs {
		fmt.Fprintf(&b, "\n*%d.* %s\n    📧 %s\n    📅 Vence: %s", i+1, s.ServiceName, s.Email, normalize.ISODate(s.ExpiryDate))
	}
	b.WriteString("\n\n*0.* 🔙 Volver\n👇 *Responde con el número para gestionar*")
	return b.String()
}

func subDetails(s session.SubRef) string {
	var b strings.Builder
	b.WriteString(box("🔐 *DETALLES DE CUENTA*"))
	fmt.Fprintf(&b, "📺 *Servicio:* %s\n📧 *Email:* %s\n🔑 *Pass:* %s\n", s.ServiceName, s.Email, s.Password)
	if hasProfile(s.ProfilePin) {
		fmt.Fprintf(&b, "👤 *Perfil:* %s\n🔒 *PIN:* %s\n", s.ProfileName, s.ProfilePin)
	}
	fmt.Fprintf(&b, "📅 *Vence:* %s\n\n", normalize.ISODate(s.ExpiryDate))
	b.WriteString("1️⃣  🔄 *Renovar*\n2️⃣  🗑️ *Eliminar esta suscripción*\n0️⃣  🔙 *Volver*\n\n👇 *Elige una opción*")
	return b.String()
}

func accountList(platform string, accounts []models.Account) string {
	var b strings.Builder
	b.WriteString(box("📋 *LISTA " + strings.ToUpper(platform) + "*"))
	limit := catalog.Limit(platform)
	for i, a := range accounts {
		fmt.Fprintf(&b, "\n*%d.* 📧 %s (%d/%d)\n    🔑 %s\n", i+1, a.Email, a.Occupancy(), limit, a.Password)
		for _, m := range a.Members {
			fmt.Fprintf(&b, "    - %s (%s) | %s\n", m.ClientName, m.ClientPhone, normalize.ISODate(m.ExpiryDate))
		}
	}
	b.WriteString("\n*0.* 🔙 Volver\n👇 *Escribe el número de la cuenta para gestionar*")
	return b.String()
}

func accountActionMenu(platform, email string) string {
	return fmt.Sprintf("Cuenta: *%s* (%s)\n\n", platform, email) +
		"1. Agregar Usuario (Vender)\n" +
		"2. Ver/Gestionar Usuarios\n" +
		"3. Eliminar Cuenta Completa\n" +
		"4. Editar Credenciales (Email/Pass)\n" +
		"5. Cambiar Contraseña\n" +
		"0. Volver\n\n" +
		"Responde con el número."
}

func emailMenu(email string, members []session.MemberRef) string {
	var b strings.Builder
	b.WriteString(box("📧 *RESULTADOS*"))
	fmt.Fprintf(&b, "*Email:* %s\n", email)
	for i, m := range members {
		fmt.Fprintf(&b, "\n*%d.* %s (%s)\n    %s | Vence: %s", i+1, m.ClientName, m.ClientPhone,
			m.ServiceName, normalize.ISODate(m.ExpiryDate))
	}
	b.WriteString("\n\n👇 *Opciones de Gestión:*\n" +
		"A. 🔑 Cambiar Contraseña (Global)\n" +
		"B. ✏️ Reemplazar Credenciales\n" +
		"C. 🗑️ Eliminar Todo el Correo\n" +
		"D. 👤 Gestionar Usuario Específico\n" +
		"X. ❌ Cancelar\n\n" +
		"Responde con la letra.")
	return b.String()
}

func memberList(email string, members []session.MemberRef) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Usuarios en %s:*\n", email)
	for i, m := range members {
		fmt.Fprintf(&b, "%d. %s (%s) | %s\n", i+1, m.ClientName, m.ClientPhone, m.ServiceName)
	}
	b.WriteString("\n0. Volver\nIngresa el *número* del usuario para gestionar:")
	return b.String()
}

func memberMenu(m session.MemberRef) string {
	return fmt.Sprintf("Usuario: *%s* (%s)\n", m.ClientName, m.ClientPhone) +
		fmt.Sprintf("📺 %s | Perfil: %s | PIN: %s | Vence: %s\n\n",
			m.ServiceName, m.ProfileName, m.ProfilePin, normalize.ISODate(m.ExpiryDate)) +
		"1. Eliminar Usuario\n" +
		"2. Editar Perfil\n" +
		"3. Editar PIN\n" +
		"4. Editar Nombre\n" +
		"5. Editar Teléfono\n" +
		"6. Editar Vencimiento\n" +
		"0. Volver"
}

func deleteGroupPrompt(email string) string {
	return fmt.Sprintf("⚠️ ¿Eliminar TODAS las suscripciones de %s?\nResponde *SI*.", email)
}

func broadcastPreview(message string, recipients int) string {
	return box("📢 *DIFUSIÓN*") +
		fmt.Sprintf("%s\n\nSe enviará a *%d* clientes activos.\n¿Confirmas? Responde *SI*.", message, recipients)
}

func importSummary(r models.ImportReport) string {
	text := box("📥 *IMPORTACIÓN*") +
		fmt.Sprintf("👤 Clientes nuevos: %d\n📺 Suscripciones importadas: %d\n⏭️ Filas omitidas: %d",
			r.Created, r.Imported, r.Skipped)
	if r.Header {
		text += "\n🏷️ Encabezado omitido"
	}
	return text
}
