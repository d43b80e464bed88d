// SPDX-License-Identifier: BSD-3-Clause

// Package operator provides a service orchestrator that manages and supervises
// the fan control and fan monitor services in a fault-tolerant manner. It acts
// as the central coordinator for fand, handling service lifecycle management,
// inter-process communication setup, and providing a supervision tree for
// automatic service recovery.
//
// The operator service is the main entry point for fand and is responsible
// for starting, monitoring, and coordinating the fan subsystem's services.
// It implements a robust supervision strategy that automatically restarts
// failed services and maintains system stability.
//
// # Core Features
//
//   - Service lifecycle management and orchestration
//   - Fault-tolerant supervision with automatic restart policies
//   - Inter-process communication coordination via NATS
//   - Configurable service selection and ordering
//   - System initialization and mount point management
//   - OpenTelemetry integration for observability
//   - Graceful shutdown handling
//
// # Architecture
//
// The operator follows a supervision tree pattern where services are organized
// in a hierarchical structure with well-defined restart policies. The operator
// itself acts as the root supervisor, managing child services and handling
// their failures according to configured strategies.
//
// The supervision tree includes:
//   - IPC service (highest priority, started first)
//   - Fan control service (fanctlmgr)
//   - Fan monitor service (fanmonmgr)
//   - Telemetry and any additional custom services
//
// # Service Management
//
// The operator manages the services that make up the fan subsystem:
//
//   - IPC: Inter-process communication service (NATS server)
//   - Fanctlmgr: Event-driven fan control engine (zones, groups, actions)
//   - Fanmonmgr: Rotor health monitoring and power-off fault handling
//   - Telemetry: Metrics collection and observability
//
// Fanctlmgr and Fanmonmgr each require the caller to supply a broker backed
// by the target board's actual object store (D-Bus, hwmon, or a test
// double); the operator has no usable default for either, so they are
// configured explicitly via WithFanctlmgr/WithFanmonmgr rather than started
// automatically by New().
//
// # Configuration
//
// The operator supports extensive configuration through the options pattern:
//
//	op := operator.New(
//		operator.WithName("production-fand"),
//		operator.WithTimeout(30*time.Second),
//		operator.WithIPC(
//			ipc.WithServerName("fand-ipc"),
//			ipc.WithStoreDir("/var/lib/fand/ipc"),
//		),
//		operator.WithTelemetry(
//			telemetry.WithMetricsEnabled(true),
//			telemetry.WithTracingEnabled(true),
//		),
//		operator.WithFanctlmgr(broker),
//		operator.WithFanmonmgr(broker),
//		operator.WithExtraServices(myCustomService),
//	)
//
// # Supervision and Fault Tolerance
//
// The operator implements a robust supervision strategy:
//
//   - Transient restart policy: Services are restarted on failure
//   - Configurable timeouts for service startup and shutdown
//   - Isolation: Service failures don't affect other services
//   - Graceful degradation: System continues with reduced functionality
//   - Logging and monitoring of all service state changes
//
// # Inter-Process Communication
//
// The operator coordinates IPC setup for all services:
//
//   - Starts the IPC service first to provide communication infrastructure
//   - Provides connection providers to all other services
//   - Handles IPC service failures and recovery
//   - Supports both embedded and external IPC configurations
//
// # System Initialization
//
// The operator handles various system initialization tasks:
//
//   - Mount point setup for pseudo-filesystems
//   - OpenTelemetry configuration and setup
//   - Persistent ID generation and management
//   - Logo display and branding
//   - Global logger configuration
//
// # Usage Patterns
//
// ## Basic Usage
//
// The simplest way to use the operator is with a configured broker:
//
//	op := operator.New(operator.WithFanctlmgr(broker), operator.WithFanmonmgr(broker))
//	err := op.Run(ctx, nil)
//
// ## External IPC Integration
//
// When integrating with external IPC infrastructure:
//
//	// Use external IPC connection
//	err := op.Run(ctx, externalIPCConn)
//
// ## Adding Custom Services
//
// Custom services can be added to the supervision tree:
//
//	myService := &MyCustomService{}
//	op := operator.New(
//		operator.WithExtraServices(myService),
//	)
//
// # Error Handling
//
// The operator provides comprehensive error handling:
//
//   - Configuration validation before startup
//   - Graceful handling of service startup failures
//   - Detailed error reporting with context
//   - Automatic recovery from transient failures
//   - Clean shutdown on fatal errors
//
// # Observability
//
// The operator integrates with OpenTelemetry for comprehensive observability:
//
//   - Distributed tracing across all services
//   - Structured logging with correlation IDs
//   - Metrics collection and reporting
//   - Service dependency mapping
//
// # Example Implementation
//
//	package main
//
//	import (
//		"context"
//		"os"
//		"os/signal"
//		"syscall"
//		"time"
//
//		"github.com/u-bmc/fand/service/operator"
//		"github.com/u-bmc/fand/service/ipc"
//	)
//
//	func main() {
//		op := operator.New(
//			operator.WithName("my-fand"),
//			operator.WithTimeout(20*time.Second),
//			operator.WithIPC(
//				ipc.WithServerName("my-fand-ipc"),
//				ipc.WithMaxMemory(128*1024*1024), // 128MB
//			),
//			operator.WithFanctlmgr(broker),
//			operator.WithFanmonmgr(broker),
//		)
//
//		ctx, cancel := context.WithCancel(context.Background())
//		defer cancel()
//
//		sigChan := make(chan os.Signal, 1)
//		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
//
//		go func() {
//			<-sigChan
//			cancel()
//		}()
//
//		if err := op.Run(ctx, nil); err != nil {
//			if err != context.Canceled {
//				log.Fatal("Operator failed", "error", err)
//			}
//		}
//	}
//
// # Service Dependencies
//
// The operator manages service dependencies automatically:
//
//  1. IPC service starts first (communication infrastructure)
//  2. Fanctlmgr and Fanmonmgr start in parallel
//  3. Telemetry and any extra services start alongside them
//
// Services can communicate with each other through the IPC infrastructure
// once all services are running and ready.
package operator
