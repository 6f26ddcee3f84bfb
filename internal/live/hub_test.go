package live

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cleanupghent/cleanup-backend/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const testSecret = "live-test-secret"

var listedAdminID = uuid.MustParse("6f1c2b8e-4d3a-4c5b-9e7f-0a1b2c3d4e5f")

func signToken(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	return signTokenWithEmail(t, userID, "", role)
}

func signTokenWithEmail(t *testing.T, userID uuid.UUID, email, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID.String(),
		"email": email,
		"role":  role,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(&config.Config{
		JWTSecret:    testSecret,
		AdminEmails:  "stad@gent.be",
		AdminUserIDs: listedAdminID.String(),
	}, nil)
	go hub.Run()
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		srv.Close()
		hub.Stop()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readType(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	return msg.Type
}

func TestRejectsMissingToken(t *testing.T) {
	_, srv := startHub(t)
	resp, err := http.Get(srv.URL + "/ws")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAudienceRouting(t *testing.T) {
	hub, srv := startHub(t)

	reporter := uuid.New()
	admin := dial(t, srv, signToken(t, uuid.New(), "admin"))
	user := dial(t, srv, signToken(t, reporter, "user"))
	other := dial(t, srv, signToken(t, uuid.New(), "user"))
	waitForClients(t, hub, 3)

	hub.Publish(ToAdmins(TypeReportSubmitted, map[string]string{"id": "r1"}))
	hub.Publish(ToUserAndAdmins(TypeReportReviewed, reporter, map[string]string{"id": "r1"}))
	hub.Publish(Broadcast(TypeLeaderboardUpdated, nil))

	if got := readType(t, admin); got != TypeReportSubmitted {
		t.Errorf("admin first = %s", got)
	}
	if got := readType(t, admin); got != TypeReportReviewed {
		t.Errorf("admin second = %s", got)
	}
	if got := readType(t, user); got != TypeReportReviewed {
		t.Errorf("reporter first = %s", got)
	}
	if got := readType(t, other); got != TypeLeaderboardUpdated {
		t.Errorf("other user first = %s, want only the broadcast", got)
	}
}

func TestConfiguredAdminsReceiveAdminMessages(t *testing.T) {
	hub, srv := startHub(t)

	byEmail := dial(t, srv, signTokenWithEmail(t, uuid.New(), "Stad@Gent.be", "user"))
	byID := dial(t, srv, signToken(t, listedAdminID, "user"))
	citizen := dial(t, srv, signTokenWithEmail(t, uuid.New(), "burger@gent.be", "user"))
	waitForClients(t, hub, 3)

	hub.Publish(ToAdmins(TypeReportSubmitted, map[string]string{"id": "r2"}))
	hub.Publish(Broadcast(TypeLeaderboardUpdated, nil))

	if got := readType(t, byEmail); got != TypeReportSubmitted {
		t.Errorf("listed email first = %s", got)
	}
	if got := readType(t, byID); got != TypeReportSubmitted {
		t.Errorf("listed user id first = %s", got)
	}
	if got := readType(t, citizen); got != TypeLeaderboardUpdated {
		t.Errorf("citizen first = %s, want only the broadcast", got)
	}
}
