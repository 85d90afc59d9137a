// Command acquisition runs the vision pipeline and the protocol
// session, either independently or together, sharing one Config and one
// shutdown flag, per SPEC_FULL.md §2's process layout.
package main

import (
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/sightcore/acquisition/internal/config"
	"github.com/sightcore/acquisition/internal/metrics"
	"github.com/sightcore/acquisition/internal/protocol/heartbeat"
	"github.com/sightcore/acquisition/internal/protocol/session"
	"github.com/sightcore/acquisition/internal/shutdown"
	"github.com/sightcore/acquisition/internal/slotbuffer"
	"github.com/sightcore/acquisition/internal/stats"
	"github.com/sightcore/acquisition/internal/vision"
)

// VERSION is overridden at release build time via -ldflags.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "acquisition"
	myApp.Usage = "vision + lidar acquisition pipeline"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{Name: "mode", Value: "vision,lidar", Usage: "comma-separated run modes: vision, lidar"},
		cli.StringFlag{Name: "configtoml", Value: "Config.toml", Usage: "path to the TOML config file"},
		cli.StringFlag{Name: "c", Value: "", Usage: "config override from JSON file, applied after configtoml"},
		cli.IntFlag{Name: "max_detections", Value: 0, Usage: "override max_detections (0 keeps config value)"},
		cli.Float64Flag{Name: "confidence_threshold", Value: 0, Usage: "override confidence_threshold (0 keeps config value)"},
		cli.Float64Flag{Name: "iou_threshold", Value: 0, Usage: "override iou_threshold (0 keeps config value)"},
		cli.IntFlag{Name: "feature_map_size", Value: 0, Usage: "override feature_map_size (0 keeps config value)"},
		cli.IntFlag{Name: "camera_exposure_time", Value: 0, Usage: "override camera_exposure_time, microseconds (0 keeps config value)"},
		cli.StringFlag{Name: "user_ip", Value: "", Usage: "override user_ip"},
		cli.IntFlag{Name: "cmd_port", Value: 0, Usage: "override cmd_port (0 keeps config value)"},
		cli.IntFlag{Name: "data_port", Value: 0, Usage: "override data_port (0 keeps config value)"},
		cli.IntFlag{Name: "imu_port", Value: 0, Usage: "override imu_port (0 keeps config value)"},
		cli.StringFlag{Name: "log", Value: "", Usage: "specify a log file to output, default goes to stderr"},
		cli.StringFlag{Name: "statslog", Value: "", Usage: "collect stats to a CSV file, aware of timeformat in golang, like: ./stats-20060102.csv"},
		cli.IntFlag{Name: "statsperiod", Value: 60, Usage: "stats collect period, in seconds"},
		cli.StringFlag{Name: "metrics-addr", Value: "", Usage: "serve Prometheus /metrics on this address, e.g. :9090 (disabled if empty)"},
		cli.DurationFlag{Name: "heartbeat-period", Value: time.Second, Usage: "lidar session heartbeat period"},
		cli.IntFlag{Name: "slots", Value: 3, Usage: "per-stage SharedSlotBuffer slot count"},
		cli.BoolFlag{Name: "flip", Usage: "flip camera image horizontally"},
		cli.BoolFlag{Name: "quiet", Usage: "accepted and ignored: per-10-frame FPS logging is always on"},
	}
	myApp.Action = run

	if err := myApp.Run(os.Args); err != nil {
		checkError(err)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.LoadTOML(c.String("configtoml"))
	checkError(err)
	checkError(config.LoadJSONOverride(&cfg, c.String("c")))
	applyFlagOverrides(&cfg, c)

	if c.String("log") != "" {
		f, err := os.OpenFile(c.String("log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		checkError(err)
		defer f.Close()
		log.SetOutput(f)
	}
	logger := log.New(log.Writer(), "", log.Flags())

	for _, w := range cfg.Warnings() {
		color.Red("config warning: %s", w)
	}

	modes := parseModes(c.String("mode"))

	log.Println("version:", VERSION)
	log.Println("mode:", strings.Join(modes, ","))
	log.Println("max_detections:", cfg.MaxDetections)
	log.Println("confidence_threshold:", cfg.ConfidenceThreshold)
	log.Println("iou_threshold:", cfg.IoUThreshold)
	log.Println("feature_map_size:", cfg.FeatureMapSize)
	log.Println("camera_exposure_time:", cfg.CameraExposureTime)
	log.Println("user_ip:", cfg.UserIP)
	log.Println("cmd_port:", cfg.CmdPort, "data_port:", cfg.DataPort, "imu_port:", cfg.ImuPort)
	log.Println("statslog:", c.String("statslog"))
	log.Println("metrics-addr:", c.String("metrics-addr"))

	reg, promReg := metrics.NewRegistry()
	if addr := c.String("metrics-addr"); addr != "" {
		go func() {
			if err := metrics.Serve(addr, promReg); err != nil {
				logger.Printf("metrics: server exited: %v", err)
			}
		}()
	}

	pstats := &stats.PipelineStats{}
	statsStop := make(chan struct{})
	go stats.Logger(c.String("statslog"), time.Duration(c.Int("statsperiod"))*time.Second, pstats, logger, statsStop)

	stop := &shutdown.Flag{}
	var wg sync.WaitGroup
	var sess *session.Session

	installSignalHandler(stop, func() {
		if sess != nil {
			sess.Disconnect()
		}
	})

	if contains(modes, "vision") {
		runVision(cfg, stop, logger, reg, pstats, &wg, c.Int("slots"), c.Bool("flip"), c.Bool("quiet"))
	}

	if contains(modes, "lidar") {
		s, err := runLidar(cfg, stop, logger, reg, pstats, &wg, c.Duration("heartbeat-period"))
		if err != nil {
			close(statsStop)
			return err
		}
		sess = s
	}

	wg.Wait()
	close(statsStop)
	log.Println("shutdown complete")
	return nil
}

func applyFlagOverrides(cfg *config.Config, c *cli.Context) {
	if v := c.Int("max_detections"); v != 0 {
		cfg.MaxDetections = uint16(v)
	}
	if v := c.Float64("confidence_threshold"); v != 0 {
		cfg.ConfidenceThreshold = float32(v)
	}
	if v := c.Float64("iou_threshold"); v != 0 {
		cfg.IoUThreshold = float32(v)
	}
	if v := c.Int("feature_map_size"); v != 0 {
		cfg.FeatureMapSize = uint16(v)
	}
	if v := c.Int("camera_exposure_time"); v != 0 {
		cfg.CameraExposureTime = uint32(v)
	}
	if v := c.String("user_ip"); v != "" {
		cfg.UserIP = v
	}
	if v := c.Int("cmd_port"); v != 0 {
		cfg.CmdPort = uint16(v)
	}
	if v := c.Int("data_port"); v != 0 {
		cfg.DataPort = uint16(v)
	}
	if v := c.Int("imu_port"); v != 0 {
		cfg.ImuPort = uint16(v)
	}
}

func parseModes(raw string) []string {
	var out []string
	for _, m := range strings.Split(raw, ",") {
		m = strings.TrimSpace(m)
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

func checkError(err error) {
	if err != nil {
		log.Printf("%+v\n", err)
		os.Exit(-1)
	}
}

// metricsSink adapts vision.PoseSink to the pipeline stats counters,
// and is the only consumer of Analysis stage output in this binary
// (rendering is entirely external per SPEC_FULL.md §6).
type metricsSink struct {
	logger *log.Logger
	stats  *stats.PipelineStats
}

func (s *metricsSink) Publish(p vision.Pose) {
	s.stats.IncPosesPublished()
	s.logger.Printf("pose: class=%d t=%v translation=%v", p.Class, p.Timestamp, p.Translation)
}

// runVision wires the four-stage pipeline per SPEC_FULL.md §2/§4.3 and
// spawns one goroutine per stage, tracked in wg. A missing driver
// registration (the default build links none, see drivers.go) is logged
// and the pipeline is simply not started; lidar mode, if also
// requested, is unaffected since the two subsystems share only stop.
func runVision(cfg config.Config, stop *shutdown.Flag, logger *log.Logger, reg *metrics.Registry, pstats *stats.PipelineStats, wg *sync.WaitGroup, slots int, flip bool, quiet bool) {
	cam, gpu, infer, post, err := loadVisionDrivers()
	if err != nil {
		logger.Printf("vision: %+v", err)
		return
	}

	// Probe the camera for its native resolution so every pipeline
	// buffer can be preallocated before the Camera stage's own Run
	// loop re-initializes the same collaborator.
	width, height, err := cam.Initialize(1, cfg.CameraExposureTime)
	if err != nil {
		logger.Printf("vision: camera probe initialize failed: %v", err)
		return
	}
	if err := cam.Uninitialize(); err != nil {
		logger.Printf("vision: camera probe uninitialize failed: %v", err)
		return
	}

	if err := post.Init(int(cfg.MaxDetections), cfg.ConfidenceThreshold, cfg.IoUThreshold, int(cfg.FeatureMapSize)); err != nil {
		logger.Printf("vision: postprocessor init failed: %v", err)
		return
	}

	engine, err := infer.CreateEngine("model.engine", "input", "output", width, height)
	if err != nil {
		logger.Printf("vision: create_engine failed: %v", err)
		return
	}
	inferCtx, err := engine.CreateContext()
	if err != nil {
		logger.Printf("vision: create_context failed: %v", err)
		return
	}

	fmapSize := int(cfg.FeatureMapSize)
	tensorShape := []int{1, 3, fmapSize, fmapSize}

	imageBuf, err := vision.NewImageBuffer(slots, width, height)
	checkError(err)
	tensorBuf, err := vision.NewTensorBuffer(slots, tensorShape)
	checkError(err)
	detectionBuf, err := vision.NewDetectionBuffer(slots, int(cfg.MaxDetections))
	checkError(err)

	cameraStage := vision.NewCameraStage(cam, slotbuffer.NewWriter(imageBuf), stop, logger, cfg.CameraExposureTime, flip, nil).WithCounters(pstats, reg)
	inferenceStage := vision.NewInferenceStage(imageBuf.GetReader(), slotbuffer.NewWriter(tensorBuf), gpu, inferCtx, stop, logger, nil).WithCounters(pstats, reg)
	postprocessStage := vision.NewPostprocessStage(tensorBuf.GetReader(), slotbuffer.NewWriter(detectionBuf), post, int(cfg.MaxDetections), stop, logger, nil).WithCounters(pstats, reg)
	analysisStage := vision.NewAnalysisStage(detectionBuf.GetReader(), &metricsSink{logger: logger, stats: pstats}, vision.DefaultIntrinsics, stop, logger)

	stages := []interface{ Run() }{cameraStage, inferenceStage, postprocessStage, analysisStage}
	var stagesWG sync.WaitGroup
	for i, st := range stages {
		wg.Add(1)
		stagesWG.Add(1)
		i, st := i, st
		go func() {
			defer wg.Done()
			defer stagesWG.Done()
			st.Run()
			logger.Printf("vision: stage %d exited", i)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		stagesWG.Wait()
		if err := post.Destroy(); err != nil {
			logger.Printf("vision: postprocessor destroy failed: %v", err)
		}
		if err := engine.Release(); err != nil {
			logger.Printf("vision: engine release failed: %v", err)
		}
	}()

	_ = quiet // ignored: the Camera stage's FPS logging is unconditional
}

// runLidar discovers the device, completes the handshake, starts
// sampling, and launches the heartbeat daemon, per SPEC_FULL.md §4.5.
func runLidar(cfg config.Config, stop *shutdown.Flag, logger *log.Logger, reg *metrics.Registry, pstats *stats.PipelineStats, wg *sync.WaitGroup, heartbeatPeriod time.Duration) (*session.Session, error) {
	deviceAddr, err := session.Discover(stop, logger, pstats, reg)
	if err != nil {
		return nil, err
	}

	ep := session.Endpoints{UserIP: cfg.UserIP, CmdPort: cfg.CmdPort, DataPort: cfg.DataPort, ImuPort: cfg.ImuPort}
	sess, err := session.Connect(deviceAddr, ep, logger)
	if err != nil {
		return nil, err
	}

	sess.Emitter().WithCounters(pstats, reg)

	if err := sess.StartSampling(); err != nil {
		logger.Printf("lidar: start sampling failed: %v", err)
	}

	hbShutdown := make(chan struct{})
	daemon := heartbeat.New(sess.Emitter(), heartbeatPeriod, stop, logger, hbShutdown).WithCounters(pstats, reg)
	wg.Add(1)
	go func() {
		defer wg.Done()
		daemon.Run()
	}()

	// This goroutine bridges the pipeline-wide stop flag into
	// the daemon's one-shot supervisor channel, per SPEC_FULL.md §4.5:
	// a stop request from anywhere (SIGINT, a vision fatal error) must
	// also unblock the heartbeat daemon's ticker select.
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-daemon.Done():
				return
			case <-ticker.C:
				if stop.Stopped() {
					close(hbShutdown)
					return
				}
			}
		}
	}()

	return sess, nil
}
