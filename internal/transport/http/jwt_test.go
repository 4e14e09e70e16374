package http

import (
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vovakirdan/roomchat/internal/proto"
)

func makeJWT(secret, aud, iss, email string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":   email,
		"email": email,
		"exp":   time.Now().Add(ttl).Unix(),
	}
	if aud != "" {
		claims["aud"] = aud
	}
	if iss != "" {
		claims["iss"] = iss
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func TestWebSocketJWTSuccess(t *testing.T) {
	env := startTestServer(t, testConfig())

	token, err := makeJWT(testSecret, "test", "test", "gina@example.com", time.Minute)
	if err != nil {
		t.Fatalf("make jwt: %v", err)
	}

	client := env.dial(t, "")
	client.send(proto.InboundTypeHello, proto.HelloData{Token: token})
	client.send(proto.InboundTypeJoin, proto.JoinData{Room: "general"})

	frame := client.expect(proto.EventSnapshot, loaded("general", 0))
	if got := frame.snapshot(t).User; got != "gina@example.com" {
		t.Fatalf("expected signed-in user in snapshot, got %q", got)
	}
}

func TestWebSocketJWTInvalid(t *testing.T) {
	env := startTestServer(t, testConfig())

	cases := map[string]func() (string, error){
		"garbage": func() (string, error) { return "invalid", nil },
		"wrong secret": func() (string, error) {
			return makeJWT("other-secret", "test", "test", "gina@example.com", time.Minute)
		},
		"wrong audience": func() (string, error) {
			return makeJWT(testSecret, "elsewhere", "test", "gina@example.com", time.Minute)
		},
		"expired": func() (string, error) {
			return makeJWT(testSecret, "test", "test", "gina@example.com", -time.Minute)
		},
	}

	for name, mk := range cases {
		t.Run(name, func(t *testing.T) {
			token, err := mk()
			if err != nil {
				t.Fatalf("make jwt: %v", err)
			}

			client := env.dial(t, "")
			client.send(proto.InboundTypeHello, proto.HelloData{Token: token})

			f := client.expect(proto.OutboundTypeError, nil)
			if f.Error == nil || f.Error.Code != proto.ErrCodeUnauthorized {
				t.Fatalf("expected unauthorized error, got %+v", f)
			}
		})
	}
}

func TestWebSocketSignOutRedirectsSend(t *testing.T) {
	env := startTestServer(t, testConfig())
	token := env.register(t, "hank@example.com")

	client := env.dial(t, "room=general&token="+url.QueryEscape(token))
	client.expect(proto.EventSnapshot, loaded("general", 0))

	client.send(proto.InboundTypeHello, proto.HelloData{Token: ""})
	client.expect(proto.EventSnapshot, func(f testFrame) bool {
		return f.snapshot(t).User == ""
	})

	text := "after sign out"
	client.send(proto.InboundTypeSend, proto.SendData{Text: &text})
	client.expect(proto.EventNavigate, nil)
}
