package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// One schedule name is written decomposed (E + U+0301) to exercise NFC output.
const homesBody = `{
	"body": {
		"homes": [
			{
				"id": "h1", "name": "Maison", "timezone": "Europe/Paris",
				"rooms": [{"id": "r1", "name": "Salon"}],
				"modules": [{"id": "m1", "type": "NATherm1"}],
				"schedules": [
					{"id": "s1", "name": "Hiver", "type": "therm", "selected": true},
					{"schedule_id": "s2", "name": "E\u0301te\u0301", "type": "therm"},
					{"name": "orphan"}
				]
			},
			{"id": "h2", "name": "Chalet", "schedules": [{"id": "s3", "name": "Ski"}]}
		]
	},
	"status": "ok"
}`

func homesRoute(t *testing.T, wantHomeID string) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer AT1", r.Header.Get("Authorization"))
		assert.Equal(t, wantHomeID, r.URL.Query().Get("home_id"))
		fmt.Fprint(w, homesBody)
	}
}

func TestHomesCmd_Table(t *testing.T) {
	srv := newAPIServer(t, map[string]http.HandlerFunc{"/api/homesdata": homesRoute(t, "")})
	env := newCLIEnv(t, srv.URL, "cid")
	env.saveToken(t, "AT1", time.Now().Add(time.Hour))

	stdout, _, err := env.run(t, "homes")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "ID")
	assert.Contains(t, lines[0], "SCHEDULES")
	assert.Contains(t, lines[1], "h1")
	assert.Contains(t, lines[1], "Maison")
	assert.Contains(t, lines[1], "Europe/Paris")
	assert.Contains(t, lines[2], "Chalet")
}

func TestHomesCmd_JSON(t *testing.T) {
	srv := newAPIServer(t, map[string]http.HandlerFunc{"/api/homesdata": homesRoute(t, "")})
	env := newCLIEnv(t, srv.URL, "cid")
	env.saveToken(t, "AT1", time.Now().Add(time.Hour))

	stdout, _, err := env.run(t, "homes", "--json")
	require.NoError(t, err)

	var homes []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &homes))
	require.Len(t, homes, 2)
	assert.Equal(t, "h1", homes[0]["id"])
}

func TestHomesCmd_Unauthorized(t *testing.T) {
	srv := newAPIServer(t, map[string]http.HandlerFunc{
		"/api/homesdata": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"error":{"code":3,"message":"Access token expired"}}`)
		},
	})
	env := newCLIEnv(t, srv.URL, "cid")
	env.saveToken(t, "AT1", time.Now().Add(time.Hour))

	_, _, err := env.run(t, "homes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetching homes")
	assert.Contains(t, err.Error(), "Access token expired")
}

func TestSchedulesCmd_AllHomes(t *testing.T) {
	srv := newAPIServer(t, map[string]http.HandlerFunc{"/api/homesdata": homesRoute(t, "")})
	env := newCLIEnv(t, srv.URL, "cid")
	env.saveToken(t, "AT1", time.Now().Add(time.Hour))

	stdout, stderr, err := env.run(t, "schedules")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 4, "header plus three schedules with ids")
	assert.True(t, strings.HasPrefix(lines[1], "*"), "selected schedule is marked")
	assert.Contains(t, lines[1], "s1")
	assert.Contains(t, lines[2], "s2")
	assert.Contains(t, lines[2], "\u00c9t\u00e9", "names are NFC-normalized")
	assert.Contains(t, lines[3], "h2")
	assert.Contains(t, stderr, "skipping schedule without id")
}

func TestSchedulesCmd_OneHomeJSON(t *testing.T) {
	srv := newAPIServer(t, map[string]http.HandlerFunc{"/api/homesdata": homesRoute(t, "h1")})
	env := newCLIEnv(t, srv.URL, "cid")
	env.saveToken(t, "AT1", time.Now().Add(time.Hour))

	stdout, _, err := env.run(t, "schedules", "h1", "--json")
	require.NoError(t, err)

	var out []scheduleOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	require.Len(t, out, 2)
	assert.Equal(t, scheduleOutput{HomeID: "h1", ID: "s1", Name: "Hiver", Type: "therm", Selected: true}, out[0])
	assert.Equal(t, "s2", out[1].ID)
}

func TestSchedulesCmd_UnknownHome(t *testing.T) {
	srv := newAPIServer(t, map[string]http.HandlerFunc{"/api/homesdata": homesRoute(t, "nope")})
	env := newCLIEnv(t, srv.URL, "cid")
	env.saveToken(t, "AT1", time.Now().Add(time.Hour))

	_, _, err := env.run(t, "schedules", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `home "nope" not found`)
}

func TestScheduleSwitchCmd(t *testing.T) {
	var gotHome, gotSchedule string

	srv := newAPIServer(t, map[string]http.HandlerFunc{
		"/api/switchhomeschedule": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			require.NoError(t, r.ParseForm())
			gotHome = r.PostForm.Get("home_id")
			gotSchedule = r.PostForm.Get("schedule_id")
			fmt.Fprint(w, `{"status":"ok"}`)
		},
	})
	env := newCLIEnv(t, srv.URL, "cid")
	env.saveToken(t, "AT1", time.Now().Add(time.Hour))

	_, stderr, err := env.run(t, "schedule", "switch", "h1", "s2")
	require.NoError(t, err)
	assert.Equal(t, "h1", gotHome)
	assert.Equal(t, "s2", gotSchedule)
	assert.Contains(t, stderr, "Switched home h1 to schedule s2.")
}

func TestScheduleSwitchCmd_Quiet(t *testing.T) {
	srv := newAPIServer(t, map[string]http.HandlerFunc{
		"/api/switchhomeschedule": func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"status":"ok"}`)
		},
	})
	env := newCLIEnv(t, srv.URL, "cid")
	env.saveToken(t, "AT1", time.Now().Add(time.Hour))

	_, stderr, err := env.run(t, "-q", "schedule", "switch", "h1", "s2")
	require.NoError(t, err)
	assert.Empty(t, stderr)
}

func TestScheduleSwitchCmd_ArgCount(t *testing.T) {
	env := newCLIEnv(t, "https://api.example.test", "cid")

	_, _, err := env.run(t, "schedule", "switch", "h1")
	require.Error(t, err)
}
