package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/deskbook/internal/domain/booking"
	"github.com/example/deskbook/internal/infrastructure/postgres"
)

type Store struct {
	sc    *securecookie.SecureCookie
	users *postgres.UserRepo
}

type ctxKey string

const userIDKey ctxKey = "userID"

const (
	sessionCookie = "deskbook_session"
	pendingCookie = "deskbook_pending"
)

func NewStore(users *postgres.UserRepo, hashKey, blockKey []byte) *Store {
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int((14 * 24 * time.Hour).Seconds()))
	return &Store{sc: sc, users: users}
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

func (s *Store) CreateUser(ctx context.Context, username, password string) (int64, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return 0, err
	}
	return s.users.Create(ctx, username, hash)
}

func (s *Store) Authenticate(ctx context.Context, username, password string) (int64, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return 0, err
	}
	if !CheckPassword(u.PasswordBcrypt, password) {
		return 0, errors.New("invalid credentials")
	}
	return u.ID, nil
}

type Session struct {
	UserID int64
}

func (s *Store) SetSession(w http.ResponseWriter, r *http.Request, userID int64) error {
	val := map[string]int64{"uid": userID}
	encoded, err := s.sc.Encode(sessionCookie, val)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
		MaxAge:   int((14 * 24 * time.Hour).Seconds()),
	})
	return nil
}

func (s *Store) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func (s *Store) GetSession(r *http.Request) (Session, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return Session{}, false
	}
	val := map[string]int64{}
	if err := s.sc.Decode(sessionCookie, c.Value, &val); err != nil {
		return Session{}, false
	}
	uid := val["uid"]
	if uid <= 0 {
		return Session{}, false
	}
	return Session{UserID: uid}, true
}

func (s *Store) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.GetSession(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, sess.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func UserIDFromContext(ctx context.Context) (int64, bool) {
	uid, ok := ctx.Value(userIDKey).(int64)
	return uid, ok
}

// SetPendingSelection stashes the in-progress selection in a short-lived
// cookie before redirecting to login, so the user resumes exactly where the
// AuthRequired result interrupted them.
func (s *Store) SetPendingSelection(w http.ResponseWriter, ps booking.PendingSelection) error {
	encoded, err := s.sc.Encode(pendingCookie, ps)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     pendingCookie,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(time.Hour.Seconds()),
	})
	return nil
}

// TakePendingSelection reads and clears the stashed selection, if any.
func (s *Store) TakePendingSelection(w http.ResponseWriter, r *http.Request) (booking.PendingSelection, bool) {
	c, err := r.Cookie(pendingCookie)
	if err != nil {
		return booking.PendingSelection{}, false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     pendingCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	var ps booking.PendingSelection
	if err := s.sc.Decode(pendingCookie, c.Value, &ps); err != nil {
		return booking.PendingSelection{}, false
	}
	if ps.Empty() {
		return booking.PendingSelection{}, false
	}
	return ps, true
}

func NormalizeUsername(u string) string {
	return strings.ToLower(strings.TrimSpace(u))
}
