package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func metaAgainst(t *testing.T, handler http.HandlerFunc) *MetaCloudProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewMetaCloudProvider(srv.URL, "token", "123456")
}

func TestSendTextParsesMessageID(t *testing.T) {
	var gotPath, gotAuth string
	p := metaAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"messages": [{"id": "wamid.abc"}]}`))
	})

	res, err := p.SendText(context.Background(), "5511999990000", "oi")
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if res.ProviderMessageID != "wamid.abc" {
		t.Errorf("message id = %q, want wamid.abc", res.ProviderMessageID)
	}
	if gotPath != "/123456/messages" {
		t.Errorf("path = %q, want /123456/messages", gotPath)
	}
	if gotAuth != "Bearer token" {
		t.Errorf("auth header = %q, want bearer token", gotAuth)
	}
}

func TestServerErrorIsTransient(t *testing.T) {
	p := metaAgainst(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := p.SendText(context.Background(), "5511999990000", "oi")
	var transient *TransientError
	if !errors.As(err, &transient) {
		t.Fatalf("err = %v, want TransientError", err)
	}
}

func TestClientErrorIsPermanent(t *testing.T) {
	p := metaAgainst(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "invalid recipient"}}`))
	})

	_, err := p.SendText(context.Background(), "5511999990000", "oi")
	if err == nil {
		t.Fatal("expected rejection")
	}
	var transient *TransientError
	if errors.As(err, &transient) {
		t.Errorf("client rejection classified transient: %v", err)
	}
}

func TestTransportErrorIsTransient(t *testing.T) {
	p := NewMetaCloudProvider("http://127.0.0.1:1", "token", "123456")

	_, err := p.SendText(context.Background(), "5511999990000", "oi")
	var transient *TransientError
	if !errors.As(err, &transient) {
		t.Fatalf("err = %v, want TransientError", err)
	}
}

func TestUnexpectedResponseShape(t *testing.T) {
	p := metaAgainst(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"ok": true}`))
	})

	res, err := p.SendText(context.Background(), "5511999990000", "oi")
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if res.ProviderMessageID != "" {
		t.Errorf("message id = %q, want empty for unexpected shape", res.ProviderMessageID)
	}
}

func TestFactorySelection(t *testing.T) {
	if _, err := NewFromConfig(Config{Name: "meta", APIBase: "https://graph.invalid", Token: "t", PhoneNumberID: "1"}, nil); err != nil {
		t.Errorf("meta: %v", err)
	}
	if _, err := NewFromConfig(Config{Name: "unknown"}, nil); err == nil {
		t.Error("unknown provider name accepted")
	}
}
