// Package i18n holds the user-visible texts of the profile screens and the
// logout dialog. Keys are the English texts; other languages are registered
// in the default x/text catalog.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys.
const (
	ConfirmSaveTitle        = "Confirm changes"
	ConfirmSaveText         = "Are you sure you want to save the changes?"
	ConfirmLogoutTitle      = "Confirm logout"
	ConfirmLogoutText       = "Are you sure you want to log out? You will be redirected to the login page."
	Cancel                  = "Cancel"
	Confirm                 = "Confirm"
	Save                    = "Save changes"
	LabelName               = "Name"
	LabelEmail              = "Email"
	LabelCurrentPassword    = "Current password"
	LabelNewPassword        = "New password"
	LabelConfirmNewPassword = "Confirm new password"
	LabelAvatar             = "Profile picture"
	PasswordMismatch        = "The passwords do not match."
	FieldRequired           = "%s is required."
	AvatarDecodeFailed      = "The selected image could not be read."
	AvatarTooLarge          = "The selected image is larger than %d KB."
	CommitFailed            = "Your changes could not be saved. Please try again."
	CommitInProgress        = "Your changes are still being saved."
	Saved                   = "Changes saved."
	ReadOnly                = "This profile cannot be edited."
	NotAllowed              = "This action is not available right now."
	UnknownField            = "Unknown field."
	ScreenClosed            = "This screen has been closed."
	InternalError           = "Something went wrong."
	MenuDashboard           = "Dashboard"
	MenuCategories          = "Categories"
	MenuProfile             = "Profile"
	MenuLogout              = "Log out"
	ScreenNotFound          = "This screen does not exist."
	BadRequest              = "The request could not be understood."
	LogoutNotRequested      = "Logging out has not been requested."
)

var supported = []language.Tag{
	language.BrazilianPortuguese,
	language.English,
}

var matcher = language.NewMatcher(supported)

func init() {
	pt := language.BrazilianPortuguese
	for key, msg := range map[string]string{
		ConfirmSaveTitle:        "Confirmar alterações",
		ConfirmSaveText:         "Tem certeza que deseja salvar as alterações?",
		ConfirmLogoutTitle:      "Confirmar saída",
		ConfirmLogoutText:       "Tem certeza que deseja sair? Você será redirecionado para a página de login.",
		Cancel:                  "Cancelar",
		Confirm:                 "Confirmar",
		Save:                    "Salvar Alterações",
		LabelName:               "Nome",
		LabelEmail:              "E-mail",
		LabelCurrentPassword:    "Senha Atual",
		LabelNewPassword:        "Nova Senha",
		LabelConfirmNewPassword: "Confirmar Nova Senha",
		LabelAvatar:             "Foto de perfil",
		PasswordMismatch:        "As senhas não coincidem.",
		FieldRequired:           "%s é obrigatório.",
		AvatarDecodeFailed:      "Não foi possível ler a imagem selecionada.",
		AvatarTooLarge:          "A imagem selecionada é maior que %d KB.",
		CommitFailed:            "Não foi possível salvar as alterações. Tente novamente.",
		CommitInProgress:        "Suas alterações ainda estão sendo salvas.",
		Saved:                   "Alterações salvas.",
		ReadOnly:                "Este perfil não pode ser editado.",
		NotAllowed:              "Esta ação não está disponível no momento.",
		UnknownField:            "Campo desconhecido.",
		ScreenClosed:            "Esta tela foi fechada.",
		InternalError:           "Algo deu errado.",
		MenuDashboard:           "Dashboard",
		MenuCategories:          "Categorias",
		MenuProfile:             "Perfil",
		MenuLogout:              "Sair",
		ScreenNotFound:          "Esta tela não existe.",
		BadRequest:              "Não foi possível entender a requisição.",
		LogoutNotRequested:      "A saída não foi solicitada.",
	} {
		if err := message.SetString(pt, key, msg); err != nil {
			panic(err)
		}
	}
}

// Match picks the best supported language for an Accept-Language header,
// falling back to the given default.
func Match(acceptLanguage string, fallback language.Tag) language.Tag {
	if acceptLanguage == "" {
		return fallback
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return fallback
	}
	return supported[index]
}

// Printer returns a printer for the given language.
func Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag)
}
