package sim

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyviewx/viewx/viewxprotocol"
)

func TestDefaultScenario(t *testing.T) {
	sc := DefaultScenario()
	assert.Equal(t, "127.0.0.1:4444", sc.Listen)
	assert.Equal(t, 250, sc.SampleRate)
	assert.NoError(t, sc.Validate())
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: 127.0.0.1:0
sample_rate: 60
reply_delay: 25ms
drop_rate: 0.5
seed: 42
screen:
  width: 1920
  height: 1080
silent:
  - ET_VLS
`), 0o644))

	sc, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:0", sc.Listen)
	assert.Equal(t, 60, sc.SampleRate)
	assert.Equal(t, 25*time.Millisecond, time.Duration(sc.ReplyDelay))
	assert.InDelta(t, 0.5, sc.DropRate, 1e-9)
	assert.Equal(t, int64(42), sc.Seed)
	assert.Equal(t, Screen{Width: 1920, Height: 1080}, sc.Screen)
	assert.True(t, sc.IsSilent("et_vls"))
	assert.False(t, sc.IsSilent("ET_SRT"))
}

func TestParseScenarioDurationMillis(t *testing.T) {
	sc, err := ParseScenario([]byte("reply_delay: 40\n"))
	require.NoError(t, err)
	assert.Equal(t, 40*time.Millisecond, time.Duration(sc.ReplyDelay))
	assert.Equal(t, 250, sc.SampleRate, "unset keys keep defaults")
}

func TestParseScenarioErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"drop rate above one", "drop_rate: 1.5\n"},
		{"zero sample rate", "sample_rate: 0\n"},
		{"bad listen", "listen: nowhere\n"},
		{"bad duration", "reply_delay: soon\n"},
		{"negative delay", "reply_delay: -5ms\n"},
		{"unknown key", "sampel_rate: 60\n"},
		{"bad screen", "screen:\n  width: 0\n  height: 10\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func mustParse(t *testing.T, line string) viewxprotocol.Command {
	t.Helper()
	cmd, err := viewxprotocol.NewCommandParser().Parse(line)
	require.NoError(t, err)
	return cmd
}

func TestTrackerCalibration(t *testing.T) {
	tr := NewTracker(DefaultScenario())

	assert.Equal(t, []string{"ET_CAL 2", "ET_CHG 1"}, tr.Handle(mustParse(t, "ET_CAL 2")))
	calibrating, current := tr.Calibrating()
	assert.True(t, calibrating)
	assert.Equal(t, 1, current)

	assert.Equal(t, []string{"ET_ACC 2", "ET_CHG 2"}, tr.Handle(mustParse(t, "ET_ACC")))
	assert.Equal(t, []string{"ET_ACC", "ET_FIN 1"}, tr.Handle(mustParse(t, "ET_ACC")))

	calibrating, _ = tr.Calibrating()
	assert.False(t, calibrating)
	assert.Equal(t, []string{"ET_ACC"}, tr.Handle(mustParse(t, "ET_ACC")))
}

func TestTrackerCancelCalibration(t *testing.T) {
	tr := NewTracker(DefaultScenario())
	tr.Handle(mustParse(t, "ET_CAL 9"))
	assert.Equal(t, []string{"ET_BRK"}, tr.Handle(mustParse(t, "ET_BRK")))
	calibrating, _ := tr.Calibrating()
	assert.False(t, calibrating)
}

func TestTrackerSettings(t *testing.T) {
	tr := NewTracker(DefaultScenario())

	assert.Equal(t, []string{"ET_CPA 2 0"}, tr.Handle(mustParse(t, "ET_CPA 2")))
	assert.Equal(t, []string{"ET_CPA 2 1"}, tr.Handle(mustParse(t, "ET_CPA 2 1")))
	assert.Equal(t, []string{"ET_CPA 2 1"}, tr.Handle(mustParse(t, "ET_CPA 2")))

	assert.Equal(t, []string{"ET_LEV 3"}, tr.Handle(mustParse(t, "ET_LEV 3")))
	assert.Equal(t, 3, tr.CheckLevel())

	assert.Equal(t, []string{"ET_PNT 1 10 20"}, tr.Handle(mustParse(t, "ET_PNT 1 10 20")))
	p, ok := tr.CalibrationPoint(1)
	require.True(t, ok)
	assert.Equal(t, Point{X: 10, Y: 20}, p)

	assert.Equal(t, []string{"ET_DEF"}, tr.Handle(mustParse(t, "ET_DEF")))
	p, _ = tr.CalibrationPoint(1)
	assert.Equal(t, Point{X: 640, Y: 512}, p)

	assert.Equal(t, []string{"ET_CSZ 800 600"}, tr.Handle(mustParse(t, "ET_CSZ 800 600")))
	assert.Equal(t, []string{"ET_SRT 250"}, tr.Handle(mustParse(t, "ET_SRT")))
}

func TestTrackerValidationReplies(t *testing.T) {
	tr := NewTracker(DefaultScenario())

	vls := tr.Handle(mustParse(t, "ET_VLS"))
	require.Len(t, vls, 1)
	assert.Len(t, strings.Fields(vls[0]), 5)

	vlx := tr.Handle(mustParse(t, "ET_VLX 100 200"))
	require.Len(t, vlx, 1)
	assert.True(t, strings.HasPrefix(vlx[0], "ET_VLX 100 200 "))

	tr.Handle(mustParse(t, "ET_CAL 5"))
	res := tr.Handle(mustParse(t, "ET_RES"))
	require.Len(t, res, 1)
	assert.Len(t, strings.Fields(res[0]), 1+5*5)
}

func TestTrackerStreaming(t *testing.T) {
	tr := NewTracker(DefaultScenario())

	ok, _ := tr.Streaming()
	assert.False(t, ok)

	assert.Nil(t, tr.Handle(mustParse(t, `ET_FRM "%TS %SX %SY %DX %XX"`)))
	assert.Equal(t, "%TS %SX %SY %DX %XX", tr.DataFormat())

	assert.Nil(t, tr.Handle(mustParse(t, "ET_STR 50")))
	ok, interval := tr.Streaming()
	assert.True(t, ok)
	assert.Equal(t, 20*time.Millisecond, interval)

	fields := strings.Fields(tr.Sample())
	require.Len(t, fields, 6)
	assert.Equal(t, "ET_SPL", fields[0])
	assert.Equal(t, "0", fields[5])

	assert.Nil(t, tr.Handle(mustParse(t, "ET_EST")))
	ok, _ = tr.Streaming()
	assert.False(t, ok)
}

func TestTrackerSilentAndUnknown(t *testing.T) {
	sc := DefaultScenario()
	sc.Silent = []string{"ET_SRT"}
	tr := NewTracker(sc)

	assert.Nil(t, tr.Handle(mustParse(t, "ET_SRT")))
	assert.Nil(t, tr.Handle(viewxprotocol.MustCommand("ET_XYZ", 1)))
	assert.Nil(t, tr.Handle(viewxprotocol.MustCommand("ET_CPA", 9)), "out of range param ignored")
}

// startServer runs a simulator on an ephemeral loopback port.
func startServer(t *testing.T, sc *Scenario) *Server {
	t.Helper()
	sc.Listen = "127.0.0.1:0"
	srv := NewServer(sc, nil)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return srv
}

func connectClient(t *testing.T, srv *Server, opts ...viewxprotocol.ClientOption) *viewxprotocol.Client {
	t.Helper()
	client := viewxprotocol.NewClient(opts...)
	require.NoError(t, client.Connect("127.0.0.1", srv.Addr().(*net.UDPAddr).Port))
	t.Cleanup(client.Disconnect)
	return client
}

func TestServerAnswersClient(t *testing.T) {
	sc := DefaultScenario()
	sc.SampleRate = 60
	srv := startServer(t, sc)
	client := connectClient(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	rate, err := client.SampleRate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 60, rate)

	_, err = client.SetCalibrationCheckLevel(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Tracker().CheckLevel())
}

func TestServerCalibrationEvents(t *testing.T) {
	srv := startServer(t, DefaultScenario())

	events := make(chan string, 16)
	client := viewxprotocol.NewClient()
	client.SetEventHandler(func(event viewxprotocol.Reply) { events <- event.Raw })
	require.NoError(t, client.Connect("127.0.0.1", srv.Addr().(*net.UDPAddr).Port))
	t.Cleanup(client.Disconnect)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	reply, err := client.StartCalibration(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, "ET_CAL 2", reply.Raw)

	reply, err = client.AcceptCalibrationPoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ET_ACC 2", reply.Raw)

	reply, err = client.AcceptCalibrationPoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ET_ACC", reply.Raw)

	var got []string
	require.Eventually(t, func() bool {
		for {
			select {
			case e := <-events:
				got = append(got, e)
			default:
				return len(got) >= 3
			}
		}
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"ET_CHG 1", "ET_CHG 2", "ET_FIN 1"}, got)
}

func TestServerStreamsSamples(t *testing.T) {
	srv := startServer(t, DefaultScenario())

	samples := make(chan viewxprotocol.Reply, 64)
	client := viewxprotocol.NewClient()
	client.SetEventHandler(func(event viewxprotocol.Reply) {
		if event.Keyword == viewxprotocol.KeywordSample {
			select {
			case samples <- event:
			default:
			}
		}
	})
	require.NoError(t, client.Connect("127.0.0.1", srv.Addr().(*net.UDPAddr).Port))
	t.Cleanup(client.Disconnect)

	require.NoError(t, client.StartStreaming(100))

	select {
	case s := <-samples:
		assert.Len(t, s.Tokens(), 4)
	case <-time.After(2 * time.Second):
		t.Fatal("no samples received")
	}

	require.NoError(t, client.StopStreaming())
	require.Eventually(t, func() bool {
		ok, _ := srv.Tracker().Streaming()
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServerDroppedRepliesFailProbe(t *testing.T) {
	sc := DefaultScenario()
	sc.DropRate = 1
	srv := startServer(t, sc)

	client := viewxprotocol.NewClient(viewxprotocol.WithProbe(200 * time.Millisecond))
	err := client.Connect("127.0.0.1", srv.Addr().(*net.UDPAddr).Port)
	require.Error(t, err)
	assert.False(t, client.IsConnected())
}

func TestServerIgnoresMalformedCommands(t *testing.T) {
	srv := startServer(t, DefaultScenario())

	conn, err := net.Dial("udp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(`ET_FRM "unterminated`))
	require.NoError(t, err)
	_, err = conn.Write([]byte("ET_SRT"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, viewxprotocol.MaxReceiveSize)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ET_SRT 250", string(buf[:n]))
}

func TestServeWithoutListen(t *testing.T) {
	srv := NewServer(DefaultScenario(), nil)
	assert.Nil(t, srv.Addr())
	assert.Error(t, srv.Serve(context.Background()))
}
