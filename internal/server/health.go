package server

import (
	"context"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/quotation-intake/internal/ingest"
)

// IngestService is the health service name that tracks the fetch/stage half.
const IngestService = "quotation.ingest"

// Health is the gRPC health endpoint. The overall server is SERVING while up;
// IngestService follows the last pass.
type Health struct {
	srv    *health.Server
	logger *slog.Logger
}

func NewHealth(logger *slog.Logger) *Health {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Health{srv: health.NewServer(), logger: logger}
	h.srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.srv.SetServingStatus(IngestService, healthpb.HealthCheckResponse_SERVING)
	return h
}

// Observe records a finished pass.
func (h *Health) Observe(report ingest.PassReport) {
	status := healthpb.HealthCheckResponse_SERVING
	if !report.Healthy() {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		h.logger.Warn("health.ingest.not_serving", "pass_id", report.PassID, "error", report.StageErr)
	}
	h.srv.SetServingStatus(IngestService, status)
}

// Check answers a health request in process.
func (h *Health) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := h.srv.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// Serve runs a gRPC server with the health service on lis until ctx is done.
func (h *Health) Serve(ctx context.Context, lis net.Listener) error {
	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, h.srv)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		h.srv.Shutdown()
		s.GracefulStop()
	}()

	h.logger.Info("grpc.health.listening", "addr", lis.Addr().String())
	err := s.Serve(lis)
	if ctx.Err() != nil {
		<-stopped
	}
	return err
}
