package integration

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/leengari/dyntable/internal/api"
	"github.com/leengari/dyntable/internal/executor"
	"github.com/leengari/dyntable/internal/network"
)

// TestTCPAndHTTPShareEngine drives one engine through both front ends: the
// table is created over the TCP protocol and read back over HTTP.
func TestTCPAndHTTPShareEngine(t *testing.T) {
	eng := openEngine(t, testDBPath(t))
	defer eng.Close()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NilError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- network.Serve(ctx, listener, eng) }()
	defer func() {
		cancel()
		assert.NilError(t, <-done)
	}()

	conn, err := net.Dial("tcp", listener.Addr().String())
	assert.NilError(t, err)
	defer conn.Close()

	enc := json.NewEncoder(conn)
	dec := json.NewDecoder(conn)
	send := func(cmd executor.Command) executor.Result {
		t.Helper()
		assert.NilError(t, enc.Encode(cmd))
		var res executor.Result
		assert.NilError(t, dec.Decode(&res))
		return res
	}

	var fields executor.Command
	assert.NilError(t, json.Unmarshal([]byte(`{"op":"create","fields":{"name":"str","age":"int"}}`), &fields))
	res := send(fields)
	assert.Equal(t, "", res.Error)
	assert.Equal(t, "t1", res.TableID)

	var insert executor.Command
	assert.NilError(t, json.Unmarshal([]byte(`{"op":"insert","table_id":"t1","row":{"name":"Ann","age":30}}`), &insert))
	res = send(insert)
	assert.Equal(t, "", res.Error)

	srv := httptest.NewServer(api.NewServer(eng, nil).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/table/t1/rows")
	assert.NilError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Success bool              `json:"success"`
		Data    []json.RawMessage `json:"data"`
	}
	assert.NilError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Assert(t, body.Success)
	assert.Assert(t, is.Len(body.Data, 1))
	assert.Equal(t, `{"id":1,"name":"Ann","age":30}`, string(body.Data[0]))

	// an HTTP alter is visible to the TCP session on its next call
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/table/t1/", strings.NewReader(`{"title":"str"}`))
	assert.NilError(t, err)
	alterResp, err := http.DefaultClient.Do(req)
	assert.NilError(t, err)
	alterResp.Body.Close()
	assert.Equal(t, http.StatusOK, alterResp.StatusCode)

	res = send(executor.Command{Op: executor.OpDescribe, TableID: "t1"})
	assert.Equal(t, "", res.Error)
	assert.Assert(t, is.Len(res.Rows, 2))
	assert.Equal(t, "title", res.Rows[1].Data["field"])

	res = send(executor.Command{Op: executor.OpRows, TableID: "t1"})
	assert.Equal(t, "", res.Error)
	assert.Assert(t, is.Len(res.Rows, 0))
}
