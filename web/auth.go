package web

import (
	"github.com/goji/httpauth"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"net/http"
)

const (
	cookieName  = "trafficsigns"
	cookieValue = "authenticated"
)

type AuthMiddleware struct {
	sc   *securecookie.SecureCookie
	opts httpauth.AuthOptions
	log  *zap.Logger
}

// Setup new middleware for authenticating requests against a single user with a bcrypt password hash.
func NewAuthMiddleware(user, passwordHash string, log *zap.Logger) AuthMiddleware {
	hashKey := securecookie.GenerateRandomKey(32)
	blockKey := securecookie.GenerateRandomKey(32)
	mw := AuthMiddleware{sc: securecookie.New(hashKey, blockKey), log: log}
	mw.opts = httpauth.AuthOptions{
		Realm: "Restricted",
		AuthFunc: func(u, pass string, r *http.Request) bool {
			ok := u == user && bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(pass)) == nil
			log.Info("auth", zap.String("user", u), zap.Bool("ok", ok))
			return ok
		},
	}
	return mw
}

// If session cookie is not present then use basic auth to login and set a cookie.
func (mw AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(cookieName); err == nil {
			var value string
			if err = mw.sc.Decode(cookieName, cookie.Value, &value); err == nil && value == cookieValue {
				next.ServeHTTP(w, r)
				return
			}
		}
		httpauth.BasicAuth(mw.opts)(mw.setCookie(next)).ServeHTTP(w, r)
	})
}

func (mw AuthMiddleware) setCookie(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if encoded, err := mw.sc.Encode(cookieName, cookieValue); err == nil {
			cookie := &http.Cookie{Name: cookieName, Value: encoded, Path: "/", HttpOnly: true}
			http.SetCookie(w, cookie)
		} else {
			mw.log.Error("error encoding cookie", zap.Error(err))
		}
		h.ServeHTTP(w, r)
	})
}
