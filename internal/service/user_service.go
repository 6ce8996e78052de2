package service

import (
	"context"
	"strings"

	"blogicum/internal/models"
	"blogicum/internal/repository"
	"blogicum/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

const (
	msgUsernameTaken = "A user with that username already exists."
	msgEmailTaken    = "A user with that email already exists."
	msgBadLogin      = "Please enter a correct username and password. Note that both fields may be case-sensitive."
)

type UserService struct {
	userRepo   repository.UserRepository
	bcryptCost int
}

// RegistrationForm is the sign-up form.
type RegistrationForm struct {
	Username  string `form:"username" validate:"required,min=3,max=30,username"`
	Email     string `form:"email" validate:"required,email,max=254"`
	FirstName string `form:"first_name" validate:"max=150"`
	LastName  string `form:"last_name" validate:"max=150"`
	Password1 string `form:"password1" validate:"required"`
	Password2 string `form:"password2" validate:"required,eqfield=Password1"`
}

// LoginForm is the log-in form.
type LoginForm struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

// ProfileForm is the edit-profile form.
type ProfileForm struct {
	Username  string `form:"username" validate:"required,min=3,max=30,username"`
	Email     string `form:"email" validate:"required,email,max=254"`
	FirstName string `form:"first_name" validate:"max=150"`
	LastName  string `form:"last_name" validate:"max=150"`
}

type UpdateProfileInput struct {
	UserID uint
	Form   ProfileForm
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo, bcryptCost: bcrypt.DefaultCost}
}

// Register creates a user from a sign-up form.
func (s *UserService) Register(ctx context.Context, f RegistrationForm) (*models.User, error) {
	f.Username = strings.TrimSpace(f.Username)
	f.Email = strings.TrimSpace(f.Email)

	fields := validation.Struct(f)
	if fields == nil {
		fields = map[string]string{}
	}
	if _, bad := fields["password2"]; !bad && f.Password1 != "" {
		if err := validation.ValidatePassword(f.Password1, f.Username); err != nil {
			fields["password2"] = err.Error()
		}
	}
	if err := s.checkUnique(ctx, fields, 0, f.Username, f.Email); err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		return nil, models.NewFormError(fields)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(f.Password1), s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username:  f.Username,
		Email:     f.Email,
		FirstName: strings.TrimSpace(f.FirstName),
		LastName:  strings.TrimSpace(f.LastName),
		Password:  string(hash),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, asFormError(err, "username")
	}
	return user, nil
}

// Authenticate checks a username and password pair.
func (s *UserService) Authenticate(ctx context.Context, f LoginForm) (*models.User, error) {
	if fields := validation.Struct(f); fields != nil {
		return nil, models.NewFormError(fields)
	}

	user, err := s.userRepo.GetCredentials(ctx, strings.TrimSpace(f.Username))
	if err != nil {
		if models.IsNotFound(err) {
			// Spend comparable time on unknown usernames.
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(f.Password))
			return nil, models.NewFormError(map[string]string{"__all__": msgBadLogin})
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(f.Password)); err != nil {
		return nil, models.NewFormError(map[string]string{"__all__": msgBadLogin})
	}
	return user, nil
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("blogicum-dummy-password"), bcrypt.DefaultCost)

func (s *UserService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// GetProfile looks up the owner of a profile page by username.
func (s *UserService) GetProfile(ctx context.Context, username string) (*models.User, error) {
	return s.userRepo.GetByUsername(ctx, username)
}

// ProfileFormFor prefills the edit-profile form.
func ProfileFormFor(u *models.User) ProfileForm {
	return ProfileForm{
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	f := in.Form
	f.Username = strings.TrimSpace(f.Username)
	f.Email = strings.TrimSpace(f.Email)

	fields := validation.Struct(f)
	if fields == nil {
		fields = map[string]string{}
	}
	if err := s.checkUnique(ctx, fields, user.ID, f.Username, f.Email); err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		return nil, models.NewFormError(fields)
	}

	user.Username = f.Username
	user.Email = f.Email
	user.FirstName = strings.TrimSpace(f.FirstName)
	user.LastName = strings.TrimSpace(f.LastName)
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, asFormError(err, "username")
	}
	return user, nil
}

// checkUnique records a field error when username or email belongs to a user other than selfID.
func (s *UserService) checkUnique(ctx context.Context, fields map[string]string, selfID uint, username, email string) error {
	if _, bad := fields["username"]; !bad {
		existing, err := s.userRepo.GetByUsername(ctx, username)
		switch {
		case err == nil && existing.ID != selfID:
			fields["username"] = msgUsernameTaken
		case err != nil && !models.IsNotFound(err):
			return err
		}
	}
	if _, bad := fields["email"]; !bad {
		existing, err := s.userRepo.GetByEmail(ctx, email)
		switch {
		case err == nil && existing.ID != selfID:
			fields["email"] = msgEmailTaken
		case err != nil && !models.IsNotFound(err):
			return err
		}
	}
	return nil
}

// asFormError turns a plain validation error into a form error on field.
func asFormError(err error, field string) error {
	appErr := models.AsAppError(err)
	if appErr.Code == models.CodeValidation && appErr.Fields == nil {
		return models.NewFormError(map[string]string{field: msgUsernameTaken})
	}
	return err
}
