package internal

import (
	"bitwise74/storefront-api/internal/model"
	"bitwise74/storefront-api/internal/service"
	"bitwise74/storefront-api/internal/store"
	"bitwise74/storefront-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// StartSession signs a session for u and stores it in cookies. Users with a
// linked provider account are marked as OAuth users.
func (d *Deps) StartSession(c *gin.Context, u *model.User) error {
	isOAuth := store.GetAccountByUserID(d.DB, u.ID) != nil

	token, err := d.Sessions.Issue(u, isOAuth)
	if err != nil {
		return err
	}

	middleware.SetSessionCookies(c, token, d.Sessions.TTL())
	return nil
}

// SendMail waits for m to be handed to the mail server
func (d *Deps) SendMail(c *gin.Context, m service.Mail) error {
	ctx, cancel := MailContext(c)
	defer cancel()

	return d.Mailer.Send(ctx, m)
}
