package auth

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
)

const (
	msgRegistered      = "User registered successfully"
	msgLoggedIn        = "Login successful"
	msgInvalidEmail    = "Invalid email format"
	msgWeakPassword    = "Password must be at least 8 characters long, contain a number, and an uppercase letter"
	msgLongPassword    = "Password is too long"
	msgEmailTaken      = "Email already registered"
	msgBadCredentials  = "Invalid credentials"
	msgInvalidBody     = "invalid request body"
	msgInternalFailure = "Internal server error"

	defaultMaxBodyBytes = 1 << 20
)

// HandlerOptions configures the HTTP binding. A nil Logger means
// slog.Default(), a nil Metrics disables counting.
type HandlerOptions struct {
	Logger             *slog.Logger
	Metrics            *Metrics
	MaxBodyBytes       int64
	ExposePasswordHash bool
}

type messageResponse struct {
	Message string `json:"message"`
}

type accountResponse struct {
	ID           ID     `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return v
}

// NewRouter binds the account operations to their routes.
func NewRouter(svc Service, opts HandlerOptions) http.Handler {
	opts = opts.withDefaults()

	router := httprouter.New()
	router.Handler(http.MethodPost, "/signup", SignupHandler(svc, opts))
	router.Handler(http.MethodPost, "/login", LoginHandler(svc, opts))
	router.Handler(http.MethodGet, "/users", ListAccountsHandler(svc, opts))
	if opts.Metrics != nil {
		router.Handler(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	return RequestLogger(opts.Logger, router)
}

func SignupHandler(svc Service, opts HandlerOptions) http.Handler {
	opts = opts.withDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		req := signupRequest{}
		if err := decodeRequest(w, r, opts.MaxBodyBytes, &req); err != nil {
			encodeMessage(w, http.StatusBadRequest, err.Error())
			return
		}

		err := svc.Signup(r.Context(), req)
		opts.Metrics.observe("signup", err)
		if err != nil {
			encodeError(opts.Logger, r, err, w)
			return
		}

		encodeMessage(w, http.StatusCreated, msgRegistered)
	})
}

func LoginHandler(svc Service, opts HandlerOptions) http.Handler {
	opts = opts.withDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		req := loginRequest{}
		if err := decodeRequest(w, r, opts.MaxBodyBytes, &req); err != nil {
			encodeMessage(w, http.StatusBadRequest, err.Error())
			return
		}

		err := svc.Login(r.Context(), req)
		opts.Metrics.observe("login", err)
		if err != nil {
			encodeError(opts.Logger, r, err, w)
			return
		}

		encodeMessage(w, http.StatusOK, msgLoggedIn)
	})
}

func ListAccountsHandler(svc Service, opts HandlerOptions) http.Handler {
	opts = opts.withDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		accounts, err := svc.ListAccounts(r.Context())
		opts.Metrics.observe("list_accounts", err)
		if err != nil {
			encodeError(opts.Logger, r, err, w)
			return
		}

		res := make([]accountResponse, 0, len(accounts))
		for _, acc := range accounts {
			ar := accountResponse{ID: acc.ID, Username: acc.Username, Email: acc.Email}
			if opts.ExposePasswordHash {
				ar.PasswordHash = acc.PasswordHash
			}
			res = append(res, ar)
		}

		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(res); err != nil {
			opts.Logger.Error("failed to encode response", slog.Any("error", err))
		}
	})
}

func (o HandlerOptions) withDefaults() HandlerOptions {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = defaultMaxBodyBytes
	}
	return o
}

func encodeError(logger *slog.Logger, r *http.Request, err error, w http.ResponseWriter) {
	switch err {
	case ErrInvalidEmail:
		encodeMessage(w, http.StatusBadRequest, msgInvalidEmail)
		return
	case ErrWeakPassword:
		encodeMessage(w, http.StatusBadRequest, msgWeakPassword)
		return
	case ErrPasswordTooLong:
		encodeMessage(w, http.StatusBadRequest, msgLongPassword)
		return
	case ErrEmailTaken:
		encodeMessage(w, http.StatusBadRequest, msgEmailTaken)
		return
	case ErrInvalidCredentials:
		encodeMessage(w, http.StatusUnauthorized, msgBadCredentials)
		return
	}

	switch KindOf(err) {
	case InvalidInput:
		encodeMessage(w, http.StatusBadRequest, msgInvalidBody)
	case Conflict:
		encodeMessage(w, http.StatusBadRequest, msgEmailTaken)
	case Unauthorized:
		encodeMessage(w, http.StatusUnauthorized, msgBadCredentials)
	default:
		logger.Error("request failed",
			slog.String("request_id", requestID(r.Context())),
			slog.String("uri", r.URL.Path),
			slog.String("error", fmt.Sprintf("%+v", err)),
		)
		encodeMessage(w, http.StatusInternalServerError, msgInternalFailure)
	}
}

func encodeMessage(w http.ResponseWriter, code int, message string) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(messageResponse{Message: message})
}

// decodeRequest reads a JSON body into req and runs struct validation on it.
// The returned error is meant for the caller.
func decodeRequest(w http.ResponseWriter, r *http.Request, limit int64, req interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	if err := dec.Decode(req); err != nil {
		return errors.New(msgInvalidBody)
	}
	// exactly one JSON value per body
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New(msgInvalidBody)
	}

	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return errors.New(validationMessage(verrs[0]))
		}
		return errors.New(msgInvalidBody)
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
