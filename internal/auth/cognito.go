package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"redblood/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	ctypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

// CognitoAPI is the subset of the Cognito client used here.
type CognitoAPI interface {
	SignUp(ctx context.Context, in *cognitoidentityprovider.SignUpInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, in *cognitoidentityprovider.ConfirmSignUpInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.ConfirmSignUpOutput, error)
	InitiateAuth(ctx context.Context, in *cognitoidentityprovider.InitiateAuthInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.InitiateAuthOutput, error)
	AdminDeleteUser(ctx context.Context, in *cognitoidentityprovider.AdminDeleteUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminDeleteUserOutput, error)
}

type Cognito struct {
	api        CognitoAPI
	clientID   string
	userPoolID string
}

func NewCognito(api CognitoAPI, clientID, userPoolID string) *Cognito {
	return &Cognito{api: api, clientID: clientID, userPoolID: userPoolID}
}

// Tokens is the result of a successful login.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	IDToken      string `json:"idToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int    `json:"expiresIn"`
}

var (
	hasUpperReg  = regexp.MustCompile(`[A-Z]`)
	hasLowerReg  = regexp.MustCompile(`[a-z]`)
	hasDigitReg  = regexp.MustCompile(`[0-9]`)
	hasSymbolReg = regexp.MustCompile(`[^A-Za-z0-9]`)
)

const passwordRule = "password must be at least 12 characters and include uppercase, lowercase, number, and symbol"

// ValidateRegistration checks the account fields before anything is sent to Cognito.
func ValidateRegistration(reg types.Registration) error {
	if strings.TrimSpace(reg.FullName) == "" {
		return types.NewError(types.KindValidation, "fullName is required")
	}

	email := strings.TrimSpace(reg.Email)
	if email == "" {
		return types.NewError(types.KindValidation, "email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return types.NewError(types.KindValidation, "enter a valid email address")
	}

	pw := reg.Password
	if len(pw) < 12 || !hasUpperReg.MatchString(pw) || !hasLowerReg.MatchString(pw) ||
		!hasDigitReg.MatchString(pw) || !hasSymbolReg.MatchString(pw) {
		return types.NewError(types.KindValidation, passwordRule)
	}
	return nil
}

// SignUp creates the Cognito account, using the email as username, and returns its subject id.
func (c *Cognito) SignUp(ctx context.Context, reg types.Registration) (string, error) {
	email := strings.ToLower(strings.TrimSpace(reg.Email))

	attrs := []ctypes.AttributeType{
		{Name: aws.String("email"), Value: aws.String(email)},
		{Name: aws.String("name"), Value: aws.String(strings.TrimSpace(reg.FullName))},
	}
	if reg.PhoneNumber != "" {
		attrs = append(attrs, ctypes.AttributeType{Name: aws.String("phone_number"), Value: aws.String(reg.PhoneNumber)})
	}

	out, err := c.api.SignUp(ctx, &cognitoidentityprovider.SignUpInput{
		ClientId:       aws.String(c.clientID),
		Username:       aws.String(email),
		Password:       aws.String(reg.Password),
		UserAttributes: attrs,
	})
	if err != nil {
		return "", mapError(err)
	}
	return aws.ToString(out.UserSub), nil
}

func (c *Cognito) Confirm(ctx context.Context, email, code string) error {
	_, err := c.api.ConfirmSignUp(ctx, &cognitoidentityprovider.ConfirmSignUpInput{
		ClientId:         aws.String(c.clientID),
		Username:         aws.String(strings.ToLower(strings.TrimSpace(email))),
		ConfirmationCode: aws.String(strings.TrimSpace(code)),
	})
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (c *Cognito) Login(ctx context.Context, email, password string) (*Tokens, error) {
	resp, err := c.api.InitiateAuth(ctx, &cognitoidentityprovider.InitiateAuthInput{
		AuthFlow: ctypes.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(c.clientID),
		AuthParameters: map[string]string{
			"USERNAME": strings.ToLower(strings.TrimSpace(email)),
			"PASSWORD": password,
		},
	})
	if err != nil {
		return nil, mapError(err)
	}

	if resp.AuthenticationResult == nil || resp.AuthenticationResult.AccessToken == nil {
		return nil, types.NewError(types.KindUnauthenticated, "login requires a further challenge")
	}

	result := resp.AuthenticationResult
	return &Tokens{
		AccessToken:  aws.ToString(result.AccessToken),
		IDToken:      aws.ToString(result.IdToken),
		RefreshToken: aws.ToString(result.RefreshToken),
		ExpiresIn:    int(result.ExpiresIn),
	}, nil
}

// DeleteUser removes the account. An account that is already gone is not an error.
func (c *Cognito) DeleteUser(ctx context.Context, username string) error {
	_, err := c.api.AdminDeleteUser(ctx, &cognitoidentityprovider.AdminDeleteUserInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(username),
	})
	var notFound *ctypes.UserNotFoundException
	if errors.As(err, &notFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete cognito user: %w", err)
	}
	return nil
}

func mapError(err error) error {
	var (
		invalidPw    *ctypes.InvalidPasswordException
		userExists   *ctypes.UsernameExistsException
		invalidParam *ctypes.InvalidParameterException
		mismatch     *ctypes.CodeMismatchException
		expired      *ctypes.ExpiredCodeException
		notAuth      *ctypes.NotAuthorizedException
		unconfirmed  *ctypes.UserNotConfirmedException
		notFound     *ctypes.UserNotFoundException
	)

	switch {
	case errors.As(err, &invalidPw):
		return types.NewError(types.KindValidation, passwordRule)
	case errors.As(err, &userExists):
		return types.NewError(types.KindInvalidState, "an account with this email already exists")
	case errors.As(err, &invalidParam):
		return types.WrapError(types.KindValidation, "some details are invalid", err)
	case errors.As(err, &mismatch):
		return types.NewError(types.KindValidation, "invalid confirmation code")
	case errors.As(err, &expired):
		return types.NewError(types.KindValidation, "confirmation code has expired")
	case errors.As(err, &notAuth), errors.As(err, &notFound):
		return types.NewError(types.KindUnauthenticated, "invalid credentials")
	case errors.As(err, &unconfirmed):
		return types.NewError(types.KindUnauthenticated, "account is not confirmed")
	}
	return fmt.Errorf("cognito request failed: %w", err)
}
