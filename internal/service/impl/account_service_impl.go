package impl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"guardian/internal/detector"
	"guardian/internal/domain"
	"guardian/internal/dto"
	"guardian/internal/media"
	"guardian/internal/observability/middleware"
	"guardian/internal/service"
	"guardian/internal/store"

	"github.com/google/uuid"
)

type AccountServiceImpl struct {
	Store           dataStore
	PasswordService service.PasswordService
	TService        service.TokenService
	Pairing         service.PairingService
	Media           *media.Store
}

func NewAccountServiceImpl(st *store.Store, passwordService service.PasswordService, tokenService service.TokenService, pairing service.PairingService, ms *media.Store) *AccountServiceImpl {
	return &AccountServiceImpl{
		Store:           gormStoreAdapter{store: st},
		PasswordService: passwordService,
		TService:        tokenService,
		Pairing:         pairing,
		Media:           ms,
	}
}

type dataStore interface {
	WithTx(ctx context.Context, fn func(tx storeTx) error) error
	DeleteAccountData(ctx context.Context, accountID domain.AccountID) (map[string]int64, error)
}

type storeTx interface {
	Accounts() accountStore
	Credentials() credentialStore
	Children() childStore
	Sessions() sessionStore
	Captures() captureStore
	Usage() usageStore
}

type accountStore interface {
	Create(ctx context.Context, acc *domain.Account) error
	GetByID(ctx context.Context, id domain.AccountID) (*domain.Account, error)
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)
	UpdateProfile(ctx context.Context, id domain.AccountID, username, first, last string) error
	SetProfileImage(ctx context.Context, id domain.AccountID, path string) error
	TouchLastLogin(ctx context.Context, id domain.AccountID, at time.Time) error
}

type credentialStore interface {
	UpsertPassword(ctx context.Context, c *domain.PasswordCredential) error
	GetPasswordByAccountID(ctx context.Context, accountID domain.AccountID) (*domain.PasswordCredential, error)
}

type childStore interface {
	service.PairingKeyWriter
	Create(ctx context.Context, p *domain.ChildProfile) error
	GetByAccountID(ctx context.Context, accountID domain.AccountID) (*domain.ChildProfile, error)
}

type sessionStore interface {
	RevokeAllForAccount(ctx context.Context, accountID domain.AccountID, at time.Time) (int64, error)
}

type captureStore interface {
	ImagesByAccount(ctx context.Context, accountID domain.AccountID) ([]string, error)
}

type usageStore interface {
	IconsByAccount(ctx context.Context, accountID domain.AccountID) ([]string, error)
}

type gormStoreAdapter struct {
	store *store.Store
}

func (g gormStoreAdapter) WithTx(ctx context.Context, fn func(tx storeTx) error) error {
	if g.store == nil {
		return ErrNilStore
	}
	return g.store.WithTx(ctx, func(tx *store.Store) error {
		return fn(gormTxAdapter{tx: tx})
	})
}

func (g gormStoreAdapter) DeleteAccountData(ctx context.Context, accountID domain.AccountID) (map[string]int64, error) {
	if g.store == nil {
		return nil, ErrNilStore
	}
	return g.store.DeleteAccountData(ctx, accountID)
}

type gormTxAdapter struct {
	tx *store.Store
}

func (g gormTxAdapter) Accounts() accountStore       { return g.tx.Accounts() }
func (g gormTxAdapter) Credentials() credentialStore { return g.tx.Credentials() }
func (g gormTxAdapter) Children() childStore         { return g.tx.Children() }
func (g gormTxAdapter) Sessions() sessionStore       { return g.tx.Sessions() }
func (g gormTxAdapter) Captures() captureStore       { return g.tx.Captures() }
func (g gormTxAdapter) Usage() usageStore            { return g.tx.Usage() }

func (a *AccountServiceImpl) Signup(ctx context.Context, r dto.SignupRequest, ip, ua string) (*dto.AuthResponse, error) {
	r.Username = strings.TrimSpace(r.Username)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)

	v := domain.NewValidationError()
	validateUsername(v, r.Username)
	validateNames(v, r.FirstName, r.LastName)
	validatePassword(v, "password", r.Password)
	role := domain.Role(r.UserType)
	if role != domain.RoleParent && role != domain.RoleChild {
		v.Add("userType", "must be parent (0) or child (1)")
	}
	gender := domain.Gender(r.Gender)
	if !gender.Valid() {
		v.Add("gender", "must be 1 or 2")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	var (
		acc   *domain.Account
		child *dto.ChildView
	)
	err := a.Store.WithTx(ctx, func(tx storeTx) error {
		now := time.Now().UTC()

		acc = &domain.Account{
			ID:           uuid.New(),
			Username:     r.Username,
			Role:         role,
			FirstName:    r.FirstName,
			LastName:     r.LastName,
			Gender:       gender,
			ProfileImage: domain.DefaultProfileImage,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.Accounts().Create(ctx, acc); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return domain.ErrUsernameTaken
			}
			return err
		}

		hash, salt, paramsJSON, algo, ver, err := a.PasswordService.Hash(r.Password)
		if err != nil {
			return err
		}
		cred := &domain.PasswordCredential{
			ID:          uuid.New(),
			AccountID:   acc.ID,
			Algo:        algo,
			Hash:        hash,
			Salt:        salt,
			ParamsJSON:  paramsJSON,
			PasswordVer: ver,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Credentials().UpsertPassword(ctx, cred); err != nil {
			return err
		}

		if !acc.IsChild() {
			return nil
		}
		prof := &domain.ChildProfile{ID: uuid.New(), AccountID: acc.ID, CreatedAt: now, UpdatedAt: now}
		if err := tx.Children().Create(ctx, prof); err != nil {
			return err
		}
		key, err := a.Pairing.IssueToken(ctx, tx.Children(), prof, acc)
		if err != nil {
			return err
		}
		child = &dto.ChildView{PairingKey: key}
		return nil
	})
	if err != nil {
		return nil, err
	}

	tokens, err := a.TService.Issue(ctx, acc, ip, ua)
	if err != nil {
		return nil, err
	}

	slog.Info("account created", append(middleware.LogAttrs(ctx), "account_id", acc.ID, "role", acc.Role.String())...)
	return &dto.AuthResponse{TokenResponse: *tokens, Account: accountView(acc), Child: child}, nil
}

func (a *AccountServiceImpl) Login(ctx context.Context, r dto.LoginRequest, ip, ua string) (*dto.AuthResponse, error) {
	r.Username = strings.TrimSpace(r.Username)
	if r.Username == "" || r.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	var (
		acc   *domain.Account
		child *dto.ChildView
	)
	err := a.Store.WithTx(ctx, func(tx storeTx) error {
		var err error
		acc, err = tx.Accounts().GetByUsername(ctx, r.Username)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return domain.ErrInvalidCredentials
			}
			return err
		}
		// the role picked on the login screen has to match the account
		if r.UserType != "" && domain.Role(r.UserType) != acc.Role {
			return domain.ErrInvalidCredentials
		}
		if !acc.IsActive {
			return domain.ErrAccountDisabled
		}

		cred, err := tx.Credentials().GetPasswordByAccountID(ctx, acc.ID)
		if err != nil {
			return domain.ErrInvalidCredentials
		}
		rehashNeeded, ok := a.PasswordService.Verify(r.Password, cred)
		if !ok {
			return domain.ErrInvalidCredentials
		}
		if rehashNeeded {
			if err := a.storePassword(ctx, tx, cred, r.Password); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		if err := tx.Accounts().TouchLastLogin(ctx, acc.ID, now); err != nil {
			return err
		}
		acc.LastLoginAt = &now

		if acc.IsChild() {
			prof, err := tx.Children().GetByAccountID(ctx, acc.ID)
			if err != nil {
				return notFound(err, "child profile")
			}
			if child, err = childView(ctx, tx.Accounts(), prof); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			slog.Info("login rejected", append(middleware.LogAttrs(ctx), "username", r.Username)...)
		}
		return nil, err
	}

	tokens, err := a.TService.Issue(ctx, acc, ip, ua)
	if err != nil {
		return nil, err
	}
	return &dto.AuthResponse{TokenResponse: *tokens, Account: accountView(acc), Child: child}, nil
}

func (a *AccountServiceImpl) Logout(ctx context.Context, accountID domain.AccountID, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return domain.FieldError("refreshToken", "refresh token is required")
	}
	return a.TService.RevokeRefresh(ctx, accountID, refreshToken)
}

func (a *AccountServiceImpl) Get(ctx context.Context, accountID domain.AccountID) (*dto.AccountView, error) {
	var out dto.AccountView
	err := a.Store.WithTx(ctx, func(tx storeTx) error {
		acc, err := tx.Accounts().GetByID(ctx, accountID)
		if err != nil {
			return notFound(err, "account")
		}
		out = accountView(acc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *AccountServiceImpl) Update(ctx context.Context, accountID domain.AccountID, r dto.UpdateAccountRequest) (*dto.AccountView, error) {
	switch r.Action {
	case dto.ActionUpdatePersonalInfo:
		return a.updatePersonalInfo(ctx, accountID, r)
	case dto.ActionUpdatePassword:
		return a.updatePassword(ctx, accountID, r)
	}
	return nil, domain.FieldError("action", fmt.Sprintf("must be %s or %s", dto.ActionUpdatePersonalInfo, dto.ActionUpdatePassword))
}

func (a *AccountServiceImpl) updatePersonalInfo(ctx context.Context, accountID domain.AccountID, r dto.UpdateAccountRequest) (*dto.AccountView, error) {
	username := strings.TrimSpace(r.Username)
	first := strings.TrimSpace(r.FirstName)
	last := strings.TrimSpace(r.LastName)

	v := domain.NewValidationError()
	validateUsername(v, username)
	validateNames(v, first, last)
	if err := v.Err(); err != nil {
		return nil, err
	}

	var out dto.AccountView
	err := a.Store.WithTx(ctx, func(tx storeTx) error {
		if err := tx.Accounts().UpdateProfile(ctx, accountID, username, first, last); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return domain.ErrUsernameTaken
			}
			return notFound(err, "account")
		}
		acc, err := tx.Accounts().GetByID(ctx, accountID)
		if err != nil {
			return notFound(err, "account")
		}
		out = accountView(acc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// updatePassword re-verifies the current password and revokes every session
// of the account once the new one is stored.
func (a *AccountServiceImpl) updatePassword(ctx context.Context, accountID domain.AccountID, r dto.UpdateAccountRequest) (*dto.AccountView, error) {
	v := domain.NewValidationError()
	if r.CurrentPassword == "" {
		v.Add("currentPassword", "current password is required")
	}
	validatePassword(v, "newPassword", r.NewPassword)
	if r.NewPassword != r.RePassword {
		v.Add("rePassword", "passwords do not match")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	var out dto.AccountView
	var revoked int64
	err := a.Store.WithTx(ctx, func(tx storeTx) error {
		acc, err := tx.Accounts().GetByID(ctx, accountID)
		if err != nil {
			return notFound(err, "account")
		}
		cred, err := tx.Credentials().GetPasswordByAccountID(ctx, accountID)
		if err != nil {
			return notFound(err, "password")
		}
		if _, ok := a.PasswordService.Verify(r.CurrentPassword, cred); !ok {
			return domain.FieldError("currentPassword", "current password is incorrect")
		}
		if err := a.storePassword(ctx, tx, cred, r.NewPassword); err != nil {
			return err
		}
		revoked, err = tx.Sessions().RevokeAllForAccount(ctx, accountID, time.Now().UTC())
		if err != nil {
			return err
		}
		out = accountView(acc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("password changed", append(middleware.LogAttrs(ctx), "account_id", accountID, "revoked_sessions", revoked)...)
	return &out, nil
}

func (a *AccountServiceImpl) storePassword(ctx context.Context, tx storeTx, cred *domain.PasswordCredential, password string) error {
	hash, salt, paramsJSON, algo, ver, err := a.PasswordService.Hash(password)
	if err != nil {
		return err
	}
	cred.Algo = algo
	cred.Hash = hash
	cred.Salt = salt
	cred.ParamsJSON = paramsJSON
	cred.PasswordVer = ver
	cred.UpdatedAt = time.Now().UTC()
	return tx.Credentials().UpsertPassword(ctx, cred)
}

func (a *AccountServiceImpl) SetProfileImage(ctx context.Context, accountID domain.AccountID, image []byte) (*dto.AccountView, error) {
	_, ext, err := detector.SniffFormat(image)
	if err != nil {
		return nil, domain.FieldError("Image", "unsupported image")
	}
	rel, err := a.Media.Save(media.ProfileImages, ext, image)
	if err != nil {
		return nil, err
	}

	var (
		out dto.AccountView
		old string
	)
	err = a.Store.WithTx(ctx, func(tx storeTx) error {
		acc, err := tx.Accounts().GetByID(ctx, accountID)
		if err != nil {
			return notFound(err, "account")
		}
		old = acc.ProfileImage
		if err := tx.Accounts().SetProfileImage(ctx, accountID, rel); err != nil {
			return err
		}
		acc.ProfileImage = rel
		out = accountView(acc)
		return nil
	})
	if err != nil {
		_ = a.Media.Remove(rel)
		return nil, err
	}

	if old != "" && old != domain.DefaultProfileImage {
		if err := a.Media.Remove(old); err != nil {
			slog.Warn("old profile image not removed", append(middleware.LogAttrs(ctx), "image", old, "error", err)...)
		}
	}
	return &out, nil
}

// Delete removes the account and its data, then the files the rows pointed at.
func (a *AccountServiceImpl) Delete(ctx context.Context, accountID domain.AccountID) (*dto.DeleteAccountResponse, error) {
	var files []string
	err := a.Store.WithTx(ctx, func(tx storeTx) error {
		acc, err := tx.Accounts().GetByID(ctx, accountID)
		if err != nil {
			return notFound(err, "account")
		}
		if acc.ProfileImage != "" && acc.ProfileImage != domain.DefaultProfileImage {
			files = append(files, acc.ProfileImage)
		}
		captures, err := tx.Captures().ImagesByAccount(ctx, accountID)
		if err != nil {
			return err
		}
		icons, err := tx.Usage().IconsByAccount(ctx, accountID)
		if err != nil {
			return err
		}
		files = append(append(files, captures...), icons...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	counts, err := a.Store.DeleteAccountData(ctx, accountID)
	if err != nil {
		return nil, notFound(err, "account")
	}

	for _, f := range files {
		if err := a.Media.Remove(f); err != nil {
			slog.Warn("media not removed", append(middleware.LogAttrs(ctx), "image", f, "error", err)...)
		}
	}
	slog.Info("account deleted", append(middleware.LogAttrs(ctx), "account_id", accountID, "files", len(files))...)
	return &dto.DeleteAccountResponse{Deleted: counts}, nil
}

func validateUsername(v *domain.ValidationError, username string) {
	n := utf8.RuneCountInString(username)
	switch {
	case n == 0:
		v.Add("username", "username is required")
	case n < domain.MinUsernameLength:
		v.Add("username", fmt.Sprintf("must be at least %d characters", domain.MinUsernameLength))
	case n > domain.MaxUsernameLength:
		v.Add("username", fmt.Sprintf("must be at most %d characters", domain.MaxUsernameLength))
	}
}

func validateNames(v *domain.ValidationError, first, last string) {
	for field, val := range map[string]string{"firstName": first, "lastName": last} {
		n := utf8.RuneCountInString(val)
		if n == 0 {
			v.Add(field, "required")
		} else if n > domain.MaxNameLength {
			v.Add(field, fmt.Sprintf("must be at most %d characters", domain.MaxNameLength))
		}
	}
}

func validatePassword(v *domain.ValidationError, field, password string) {
	if utf8.RuneCountInString(password) < domain.MinPasswordLength {
		v.Add(field, fmt.Sprintf("must be at least %d characters", domain.MinPasswordLength))
	}
}

func accountView(acc *domain.Account) dto.AccountView {
	return dto.AccountView{
		ID:           acc.ID.String(),
		Username:     acc.Username,
		UserType:     string(acc.Role),
		FirstName:    acc.FirstName,
		LastName:     acc.LastName,
		Gender:       string(acc.Gender),
		ProfileImage: acc.ProfileImage,
		LastLoginAt:  acc.LastLoginAt,
	}
}
