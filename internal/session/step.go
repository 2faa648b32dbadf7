package session

import "fmt"

// Step именованное состояние диалога. Набор закрыт: новые шаги добавляются
// только сюда и в таблицу stepNames.
type Step uint8

const (
	StepIdle Step = iota

	StepSaleCategory
	StepSalePlatform
	StepSaleClient
	StepSaleCredentials
	StepSaleOverbooking
	StepSaleCost
	StepSaleProfile
	StepSalePrice

	StepRenewClient
	StepRenewPickClient
	StepRenewPickSub
	StepRenewMonths
	StepRenewConfirm

	StepClientsPick
	StepClientsAction
	StepClientsPickSub
	StepClientsSubAction
	StepClientsConfirmDelete
	StepClientsEditName
	StepClientsEditPhone

	StepListPlatform
	StepListAccount
	StepAccountAction
	StepEmailMenu

	StepAccountNewPassword
	StepAccountNewCredentials
	StepAccountConfirmDelete
	StepAccountPickMember
	StepMemberAction
	StepMemberEditProfile
	StepMemberEditPin
	StepMemberEditName
	StepMemberEditPhone
	StepMemberEditExpiry

	StepBroadcastMessage
	StepBroadcastConfirm

	StepImportAwaitFile

	stepCount
)

var stepNames = [stepCount]string{
	StepIdle: "idle",

	StepSaleCategory:    "sale_category",
	StepSalePlatform:    "sale_platform",
	StepSaleClient:      "sale_client",
	StepSaleCredentials: "sale_credentials",
	StepSaleOverbooking: "sale_overbooking",
	StepSaleCost:        "sale_cost",
	StepSaleProfile:     "sale_profile",
	StepSalePrice:       "sale_price",

	StepRenewClient:     "renew_client",
	StepRenewPickClient: "renew_pick_client",
	StepRenewPickSub:    "renew_pick_sub",
	StepRenewMonths:     "renew_months",
	StepRenewConfirm:    "renew_confirm",

	StepClientsPick:          "clients_pick",
	StepClientsAction:        "clients_action",
	StepClientsPickSub:       "clients_pick_sub",
	StepClientsSubAction:     "clients_sub_action",
	StepClientsConfirmDelete: "clients_confirm_delete",
	StepClientsEditName:      "clients_edit_name",
	StepClientsEditPhone:     "clients_edit_phone",

	StepListPlatform:  "list_platform",
	StepListAccount:   "list_account",
	StepAccountAction: "account_action",
	StepEmailMenu:     "email_menu",

	StepAccountNewPassword:    "account_new_password",
	StepAccountNewCredentials: "account_new_credentials",
	StepAccountConfirmDelete:  "account_confirm_delete",
	StepAccountPickMember:     "account_pick_member",
	StepMemberAction:          "member_action",
	StepMemberEditProfile:     "member_edit_profile",
	StepMemberEditPin:         "member_edit_pin",
	StepMemberEditName:        "member_edit_name",
	StepMemberEditPhone:       "member_edit_phone",
	StepMemberEditExpiry:      "member_edit_expiry",

	StepBroadcastMessage: "broadcast_message",
	StepBroadcastConfirm: "broadcast_confirm",

	StepImportAwaitFile: "import_await_file",
}

// Steps возвращает все шаги, кроме StepIdle.
func Steps() []Step {
	steps := make([]Step, 0, stepCount-1)
	for s := StepIdle + 1; s < stepCount; s++ {
		steps = append(steps, s)
	}
	return steps
}

// Valid сообщает, входит ли значение в перечисление.
func (s Step) Valid() bool {
	return s < stepCount
}

func (s Step) String() string {
	if !s.Valid() {
		return fmt.Sprintf("step(%d)", uint8(s))
	}
	return stepNames[s]
}

// MarshalText кодирует шаг его именем.
func (s Step) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("session: unknown step %d", uint8(s))
	}
	return []byte(stepNames[s]), nil
}

// UnmarshalText разбирает имя шага.
func (s *Step) UnmarshalText(text []byte) error {
	name := string(text)
	for i, n := range stepNames {
		if n == name {
			*s = Step(i)
			return nil
		}
	}
	return fmt.Errorf("session: unknown step %q", name)
}
