package auth

import (
	"context"
	"testing"

	"redblood/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	ctypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCognito struct {
	signUp  *cognitoidentityprovider.SignUpInput
	auth    *cognitoidentityprovider.InitiateAuthInput
	deleted *cognitoidentityprovider.AdminDeleteUserInput
	err     error
}

func (f *fakeCognito) SignUp(_ context.Context, in *cognitoidentityprovider.SignUpInput, _ ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.SignUpOutput, error) {
	f.signUp = in
	if f.err != nil {
		return nil, f.err
	}
	return &cognitoidentityprovider.SignUpOutput{UserSub: aws.String("sub-1")}, nil
}

func (f *fakeCognito) ConfirmSignUp(_ context.Context, _ *cognitoidentityprovider.ConfirmSignUpInput, _ ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.ConfirmSignUpOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &cognitoidentityprovider.ConfirmSignUpOutput{}, nil
}

func (f *fakeCognito) InitiateAuth(_ context.Context, in *cognitoidentityprovider.InitiateAuthInput, _ ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.InitiateAuthOutput, error) {
	f.auth = in
	if f.err != nil {
		return nil, f.err
	}
	return &cognitoidentityprovider.InitiateAuthOutput{
		AuthenticationResult: &ctypes.AuthenticationResultType{
			AccessToken: aws.String("access"),
			ExpiresIn:   3600,
		},
	}, nil
}

func (f *fakeCognito) AdminDeleteUser(_ context.Context, in *cognitoidentityprovider.AdminDeleteUserInput, _ ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminDeleteUserOutput, error) {
	f.deleted = in
	if f.err != nil {
		return nil, f.err
	}
	return &cognitoidentityprovider.AdminDeleteUserOutput{}, nil
}

func TestValidateRegistration(t *testing.T) {
	valid := types.Registration{Email: "jane@example.com", Password: "Sup3r-Secret!", FullName: "Jane"}
	require.NoError(t, ValidateRegistration(valid))

	tests := []struct {
		name string
		mod  func(r *types.Registration)
	}{
		{"missing name", func(r *types.Registration) { r.FullName = " " }},
		{"bad email", func(r *types.Registration) { r.Email = "jane" }},
		{"short password", func(r *types.Registration) { r.Password = "Sh0rt!" }},
		{"no symbol", func(r *types.Registration) { r.Password = "Sup3rSecretPass" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := valid
			tt.mod(&reg)
			assert.Equal(t, types.KindValidation, types.KindOf(ValidateRegistration(reg)))
		})
	}
}

func TestSignUpAndLogin(t *testing.T) {
	api := &fakeCognito{}
	c := NewCognito(api, "client-1", "pool-1")
	ctx := context.Background()

	sub, err := c.SignUp(ctx, types.Registration{Email: " Jane@Example.com", Password: "pw", FullName: "Jane"})
	require.NoError(t, err)
	assert.Equal(t, "sub-1", sub)
	assert.Equal(t, "jane@example.com", aws.ToString(api.signUp.Username))
	assert.Equal(t, "client-1", aws.ToString(api.signUp.ClientId))

	tokens, err := c.Login(ctx, "jane@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "access", tokens.AccessToken)
	assert.Equal(t, 3600, tokens.ExpiresIn)
	assert.Equal(t, ctypes.AuthFlowTypeUserPasswordAuth, api.auth.AuthFlow)

	require.NoError(t, c.DeleteUser(ctx, "jane@example.com"))
	assert.Equal(t, "pool-1", aws.ToString(api.deleted.UserPoolId))
}

func TestCognitoErrorsAreMapped(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		err  error
		want types.ErrorKind
	}{
		{"exists", &ctypes.UsernameExistsException{}, types.KindInvalidState},
		{"password", &ctypes.InvalidPasswordException{}, types.KindValidation},
		{"not authorized", &ctypes.NotAuthorizedException{}, types.KindUnauthenticated},
		{"unconfirmed", &ctypes.UserNotConfirmedException{}, types.KindUnauthenticated},
		{"code", &ctypes.CodeMismatchException{}, types.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCognito(&fakeCognito{err: tt.err}, "client-1", "pool-1")
			_, err := c.Login(ctx, "a@b.c", "pw")
			assert.Equal(t, tt.want, types.KindOf(err))
			assert.Equal(t, tt.want, types.KindOf(c.Confirm(ctx, "a@b.c", "123")))
		})
	}

	c := NewCognito(&fakeCognito{err: &ctypes.UserNotFoundException{}}, "client-1", "pool-1")
	assert.NoError(t, c.DeleteUser(ctx, "gone@example.com"))
}
