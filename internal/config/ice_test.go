package config

import "testing"

func TestParseICEServersJSON(t *testing.T) {
	t.Parallel()

	raw := `[
	  {"urls": ["stun:stun.example.com:3478"]},
	  {"urls": ["turn:turn.example.com:3478?transport=udp"], "username": "user", "credential": "pass"}
	]`

	servers, err := ParseICEServersJSON(raw, false)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(servers))
	}
	if got := servers[0].URLs; len(got) != 1 || got[0] != "stun:stun.example.com:3478" {
		t.Fatalf("unexpected stun urls: %#v", got)
	}
	if got := servers[1].Username; got != "user" {
		t.Fatalf("unexpected username: %q", got)
	}
	if cred, ok := servers[1].Credential.(string); !ok || cred != "pass" {
		t.Fatalf("unexpected credential: %#v", servers[1].Credential)
	}
}

func TestParseICEServersJSON_SingleStringURLs(t *testing.T) {
	t.Parallel()

	servers, err := ParseICEServersJSON(`[{"urls": "stun:stun.example.com:3478"}]`, false)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(servers) != 1 || len(servers[0].URLs) != 1 {
		t.Fatalf("unexpected servers: %#v", servers)
	}
}

func TestParseICEServersJSON_Rejects(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"turn without creds": `[{"urls": ["turn:turn.example.com:3478"]}]`,
		"bad scheme":         `[{"urls": ["http://example.com"]}]`,
		"no urls":            `[{"urls": []}]`,
		"urls not string":    `[{"urls": 7}]`,
		"not an array":       `{"urls": "stun:x"}`,
	}
	for name, raw := range cases {
		if _, err := ParseICEServersJSON(raw, false); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParseICEServersJSON_TURNWithoutCredsWhenTURNREST(t *testing.T) {
	t.Parallel()

	servers, err := ParseICEServersJSON(`[{"urls": ["turn:turn.example.com:3478"]}]`, true)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if servers[0].Username != "" || servers[0].Credential != nil {
		t.Fatalf("expected TURN server creds to be empty: %#v", servers[0])
	}
}

func TestParseICEServersFromConvenienceEnv(t *testing.T) {
	t.Parallel()

	servers, err := ParseICEServersFromConvenienceEnv(
		"stun:stun.example.com:3478, stun:stun2.example.com:3478",
		"turn:turn.example.com:3478?transport=udp",
		"user",
		"pass",
		false,
	)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(servers))
	}
	if len(servers[0].URLs) != 2 || servers[0].Username != "" || servers[0].Credential != nil {
		t.Fatalf("unexpected stun server: %#v", servers[0])
	}
	if servers[1].Username != "user" || servers[1].Credential != "pass" {
		t.Fatalf("unexpected turn server: %#v", servers[1])
	}
}

func TestParseICEServersFromConvenienceEnv_TURNRequiresCreds(t *testing.T) {
	t.Parallel()

	if _, err := ParseICEServersFromConvenienceEnv("", "turn:turn.example.com", "user", "", false); err == nil {
		t.Fatal("expected error for missing credential")
	}
	servers, err := ParseICEServersFromConvenienceEnv("", "turn:turn.example.com", "", "", true)
	if err != nil {
		t.Fatalf("expected success with TURN REST, got %v", err)
	}
	if len(servers) != 1 {
		t.Fatalf("expected 1 server, got %d", len(servers))
	}
}

func TestParseICEServersFromConvenienceEnv_Empty(t *testing.T) {
	t.Parallel()

	servers, err := ParseICEServersFromConvenienceEnv("", "", "", "", false)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(servers) != 0 {
		t.Fatalf("expected no servers, got %#v", servers)
	}
}
