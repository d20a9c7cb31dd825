package grpc

import (
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// IntegratorService имя сервиса в health-протоколе, отражающее доступность интегратора
const IntegratorService = "goarea.Integrator"

// HealthServer отдает состояние сервиса по стандартному протоколу grpc.health.v1
type HealthServer struct {
	health *health.Server
	logger *zap.Logger
}

func NewHealthServer(logger *zap.Logger) *HealthServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &HealthServer{health: health.NewServer(), logger: logger}
	h.health.SetServingStatus(IntegratorService, healthpb.HealthCheckResponse_SERVING)
	return h
}

// SetIntegratorAvailable переключает статус IntegratorService; пустой сервис всегда SERVING
func (h *HealthServer) SetIntegratorAvailable(available bool) {
	status := healthpb.HealthCheckResponse_SERVING
	if !available {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.logger.Info("integrator health changed", zap.String("status", status.String()))
	h.health.SetServingStatus(IntegratorService, status)
}

// Shutdown переводит все сервисы в NOT_SERVING
func (h *HealthServer) Shutdown() {
	h.health.Shutdown()
}

// NewServer создает gRPC сервер с зарегистрированным health-сервисом
func NewServer(h *HealthServer) *grpc.Server {
	// Настройки для keepalive и размеров сообщений
	opts := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(4 * 1024 * 1024),
		grpc.MaxSendMsgSize(4 * 1024 * 1024),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     time.Minute,
			MaxConnectionAge:      5 * time.Minute,
			MaxConnectionAgeGrace: 20 * time.Second,
			Time:                  20 * time.Second,
			Timeout:               10 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	}

	s := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s, h.health)
	return s
}

// StartServer запускает gRPC сервер и блокируется до его остановки
func StartServer(address string, s *grpc.Server, logger *zap.Logger) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}

	logger.Info("grpc server started", zap.String("addr", address))
	return s.Serve(lis)
}
