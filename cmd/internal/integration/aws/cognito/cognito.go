package cognitoclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"

	"selfbooking/cmd/internal/config"
)

type User struct {
	Email    string
	Password string
}

type UserLogin struct {
	Email    string
	Password string
}

type UserConfirmation struct {
	Email string
	Code  string
}

type AuthCreate struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	ExpiresIn    int32
}

// Identity is the user behind a live access token.
type Identity struct {
	Sub      string
	Username string
	Email    string
}

type CognitoInterface interface {
	SignUp(user *User) (string, error)
	SignIn(login *UserLogin) (*AuthCreate, error)
	ConfirmAccount(confirm *UserConfirmation) error
	AdminDeleteUser(email string) error
	GetUser(ctx context.Context, accessToken string) (*Identity, error)
}

// identityProvider is the slice of the SDK client this package calls.
type identityProvider interface {
	SignUp(ctx context.Context, in *cognitoidentityprovider.SignUpInput, opts ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.SignUpOutput, error)
	InitiateAuth(ctx context.Context, in *cognitoidentityprovider.InitiateAuthInput, opts ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.InitiateAuthOutput, error)
	ConfirmSignUp(ctx context.Context, in *cognitoidentityprovider.ConfirmSignUpInput, opts ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.ConfirmSignUpOutput, error)
	AdminDeleteUser(ctx context.Context, in *cognitoidentityprovider.AdminDeleteUserInput, opts ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminDeleteUserOutput, error)
	GetUser(ctx context.Context, in *cognitoidentityprovider.GetUserInput, opts ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.GetUserOutput, error)
}

type CognitoClient struct {
	client     identityProvider
	clientID   string
	userPoolID string
}

var errNoChallengeSupport = errors.New("cognito: authentication challenges are not supported")

func InitCognitoClient(cfg config.Cognito) (*CognitoClient, error) {
	if cfg.ClientID == "" || cfg.UserPoolID == "" {
		return nil, errors.New("cognito: client id and user pool id are required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("cognito: load aws config: %w", err)
	}
	return &CognitoClient{
		client:     cognitoidentityprovider.NewFromConfig(awsCfg),
		clientID:   cfg.ClientID,
		userPoolID: cfg.UserPoolID,
	}, nil
}

// SignUp registers the user and returns its subject UUID. Cognito mails the
// confirmation code.
func (c *CognitoClient) SignUp(user *User) (string, error) {
	out, err := c.client.SignUp(context.Background(), &cognitoidentityprovider.SignUpInput{
		ClientId: aws.String(c.clientID),
		Username: aws.String(user.Email),
		Password: aws.String(user.Password),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String(user.Email)},
		},
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.UserSub), nil
}

func (c *CognitoClient) SignIn(login *UserLogin) (*AuthCreate, error) {
	out, err := c.client.InitiateAuth(context.Background(), &cognitoidentityprovider.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(c.clientID),
		AuthParameters: map[string]string{
			"USERNAME": login.Email,
			"PASSWORD": login.Password,
		},
	})
	if err != nil {
		return nil, err
	}
	if out.AuthenticationResult == nil {
		return nil, errNoChallengeSupport
	}
	res := out.AuthenticationResult
	return &AuthCreate{
		AccessToken:  aws.ToString(res.AccessToken),
		IDToken:      aws.ToString(res.IdToken),
		RefreshToken: aws.ToString(res.RefreshToken),
		ExpiresIn:    res.ExpiresIn,
	}, nil
}

func (c *CognitoClient) ConfirmAccount(confirm *UserConfirmation) error {
	_, err := c.client.ConfirmSignUp(context.Background(), &cognitoidentityprovider.ConfirmSignUpInput{
		ClientId:         aws.String(c.clientID),
		Username:         aws.String(confirm.Email),
		ConfirmationCode: aws.String(confirm.Code),
	})
	return err
}

func (c *CognitoClient) AdminDeleteUser(email string) error {
	_, err := c.client.AdminDeleteUser(context.Background(), &cognitoidentityprovider.AdminDeleteUserInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(email),
	})
	return err
}

// GetUser asks Cognito who owns accessToken. It fails for revoked or expired
// tokens, which a local signature check alone would not catch.
func (c *CognitoClient) GetUser(ctx context.Context, accessToken string) (*Identity, error) {
	out, err := c.client.GetUser(ctx, &cognitoidentityprovider.GetUserInput{
		AccessToken: aws.String(accessToken),
	})
	if err != nil {
		return nil, err
	}
	id := &Identity{Username: aws.ToString(out.Username)}
	for _, attr := range out.UserAttributes {
		switch aws.ToString(attr.Name) {
		case "sub":
			id.Sub = aws.ToString(attr.Value)
		case "email":
			id.Email = aws.ToString(attr.Value)
		}
	}
	return id, nil
}
