package bot

import "testing"

func TestSessionManagerLifecycle(t *testing.T) {
	m := newSessionManager()

	if state, _ := m.Get(1); state != stateIdle {
		t.Fatalf("unknown user should be idle, got %v", state)
	}

	m.Set(1, stateBusinessPlanInfo, nil)
	if state, _ := m.Get(1); state != stateBusinessPlanInfo {
		t.Fatalf("expected business plan state, got %v", state)
	}

	m.Set(1, stateDocumentTitle, map[string]string{"path": "/tmp/x.pdf"})
	state, data := m.Get(1)
	if state != stateDocumentTitle || data["path"] != "/tmp/x.pdf" {
		t.Fatalf("expected document title state with payload, got %v %v", state, data)
	}

	if !m.Clear(1) {
		t.Fatal("clearing an active session should report true")
	}
	if m.Clear(1) {
		t.Fatal("clearing an idle user should report false")
	}
	if state, _ := m.Get(1); state != stateIdle {
		t.Fatalf("cleared user should be idle, got %v", state)
	}
}

func TestSessionManagerSetIdleClears(t *testing.T) {
	m := newSessionManager()
	m.Set(7, stateValuePropositionInfo, nil)
	m.Set(7, stateIdle, nil)
	if state, _ := m.Get(7); state != stateIdle {
		t.Fatalf("setting idle should drop the session, got %v", state)
	}
}
