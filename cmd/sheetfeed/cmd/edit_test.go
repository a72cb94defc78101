package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sheetfeed "github.com/ideamans/go-sheetfeed"
	"github.com/ideamans/go-sheetfeed/adapters/feed"
)

const sheetKey = "1VJzt-key"

// feedServer serves a two-column worksheet holding one row. PUT answers
// 409 with the row the server holds. onList runs before the list feed is
// served.
func feedServer(t *testing.T, onList func()) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	atom := func(w http.ResponseWriter, status int, body string) {
		w.Header().Set("Content-Type", "application/atom+xml; charset=UTF-8")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}
	listFeed := func() string { return srv.URL + "/feeds/list/" + sheetKey + "/od6/private/full" }
	entry := func(price, version string) string {
		return `<entry xmlns="http://www.w3.org/2005/Atom" xmlns:gsx="` + feed.ExtendedNS + `">` +
			`<link rel="edit" type="application/atom+xml" href="` + listFeed() + `/row1/` + version + `"/>` +
			`<gsx:name>Widget</gsx:name><gsx:unitprice>` + price + `</gsx:unitprice></entry>`
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token_type":"Bearer","access_token":"ya29.new"}`))
	})
	mux.HandleFunc("GET /feeds/worksheets/"+sheetKey+"/private/full", func(w http.ResponseWriter, r *http.Request) {
		base := srv.URL + "/feeds"
		atom(w, http.StatusOK, `<feed xmlns="http://www.w3.org/2005/Atom"><title type="text">Parts</title>
<entry><title type="text">Sheet1</title>
<link rel="`+feed.RelListFeed+`" type="application/atom+xml" href="`+base+`/list/`+sheetKey+`/od6/private/full"/>
<link rel="`+feed.RelCellsFeed+`" type="application/atom+xml" href="`+base+`/cells/`+sheetKey+`/od6/private/full"/>
</entry></feed>`)
	})
	mux.HandleFunc("GET /feeds/cells/"+sheetKey+"/od6/private/basic", func(w http.ResponseWriter, r *http.Request) {
		atom(w, http.StatusOK, `<feed xmlns="http://www.w3.org/2005/Atom">`+
			`<entry><title type="text">A1</title><content type="text">Name</content></entry>`+
			`<entry><title type="text">B1</title><content type="text">Unit Price</content></entry></feed>`)
	})
	mux.HandleFunc("GET /feeds/list/"+sheetKey+"/od6/private/full", func(w http.ResponseWriter, r *http.Request) {
		if onList != nil {
			onList()
		}
		atom(w, http.StatusOK, `<feed xmlns="http://www.w3.org/2005/Atom" xmlns:openSearch="`+feed.OpenSearchNS+`">`+
			`<openSearch:totalResults>1</openSearch:totalResults>`+entry("12.50", "v1")+`</feed>`)
	})
	mux.HandleFunc("PUT /feeds/list/"+sheetKey+"/od6/private/full/row1/v1", func(w http.ResponseWriter, r *http.Request) {
		atom(w, http.StatusConflict, entry("99.00", "v9"))
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// writeSessionConfig writes a settings file and a config pointing at srv,
// returning the config and settings paths.
func writeSessionConfig(t *testing.T, srv *httptest.Server, settings string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	settingsFile := filepath.Join(dir, "sheetfeed.ini")
	if err := os.WriteFile(settingsFile, []byte(settings), 0o600); err != nil {
		t.Fatal(err)
	}
	configFile := filepath.Join(dir, "sheetfeed.json5")
	config := fmt.Sprintf(`{settings: %q, feed: {base_url: %q, token_url: %q}}`, settingsFile, srv.URL, srv.URL+"/token")
	if err := os.WriteFile(configFile, []byte(config), 0o644); err != nil {
		t.Fatal(err)
	}
	return configFile, settingsFile
}

func TestSetCommand_Conflict(t *testing.T) {
	srv := feedServer(t, nil)
	configFile, _ := writeSessionConfig(t, srv, "client_id = abc\nclient_secret = s3cret\nrefresh_token = 1/refresh\naccess_token = ya29.current\nspreadsheet = "+sheetKey+"\n")

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()
	rootCmd.SetArgs([]string{"--config", configFile, "set", "1", "Unit Price", "13.00"})

	err := rootCmd.ExecuteContext(context.Background())
	if !errors.Is(err, sheetfeed.ErrConflict) {
		t.Fatalf("set error = %v, want ErrConflict", err)
	}
	if !strings.Contains(err.Error(), "unitprice=99.00") {
		t.Errorf("set error %q does not carry the server's row", err)
	}
	if !strings.Contains(stderr.String(), "99.00") || !strings.Contains(stderr.String(), "Widget") {
		t.Errorf("server row not printed to stderr:\n%s", stderr.String())
	}
	if stdout.Len() != 0 {
		t.Errorf("conflicting set printed a result:\n%s", stdout.String())
	}
}

func TestColumnsCommand_FlushFailure(t *testing.T) {
	var settingsFile string
	srv := feedServer(t, func() { os.Remove(settingsFile) })
	var configFile string
	configFile, settingsFile = writeSessionConfig(t, srv, "client_id = abc\nclient_secret = s3cret\nrefresh_token = 1/refresh\nspreadsheet = "+sheetKey+"\n")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	defer rootCmd.SetOut(nil)
	rootCmd.SetArgs([]string{"--config", configFile, "columns"})

	err := rootCmd.ExecuteContext(context.Background())
	if err == nil {
		t.Fatal("columns succeeded although the refreshed token could not be saved")
	}
	if !strings.Contains(err.Error(), "persist credentials") {
		t.Errorf("columns error = %v, want the credential save failure", err)
	}
}
