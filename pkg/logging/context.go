package logging

import (
	"context"
)

const (
	CorrelationIDKey = "correlation_id"
	MessageIDKey     = "message_id"
	PatientIDKey     = "patient_id"
	WorkerIDKey      = "worker_id"
	ServiceNameKey   = "service_name"
)

func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, correlationID)
}

func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, MessageIDKey, messageID)
}

func WithPatientID(ctx context.Context, patientID string) context.Context {
	return context.WithValue(ctx, PatientIDKey, patientID)
}

func WithWorkerID(ctx context.Context, workerID int) context.Context {
	return context.WithValue(ctx, WorkerIDKey, workerID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

func GetCorrelationID(ctx context.Context) string {
	if correlationID, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return correlationID
	}
	return ""
}

func GetMessageID(ctx context.Context) string {
	if messageID, ok := ctx.Value(MessageIDKey).(string); ok {
		return messageID
	}
	return ""
}

func GetPatientID(ctx context.Context) string {
	if patientID, ok := ctx.Value(PatientIDKey).(string); ok {
		return patientID
	}
	return ""
}

func GetWorkerID(ctx context.Context) (int, bool) {
	workerID, ok := ctx.Value(WorkerIDKey).(int)
	return workerID, ok
}

func GetServiceName(ctx context.Context) string {
	if serviceName, ok := ctx.Value(ServiceNameKey).(string); ok {
		return serviceName
	}
	return ""
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 10)

	if correlationID := GetCorrelationID(ctx); correlationID != "" {
		fields = append(fields, "correlation_id", correlationID)
	}

	if messageID := GetMessageID(ctx); messageID != "" {
		fields = append(fields, "message_id", messageID)
	}

	if patientID := GetPatientID(ctx); patientID != "" {
		fields = append(fields, "patient_id", patientID)
	}

	if workerID, ok := GetWorkerID(ctx); ok {
		fields = append(fields, "worker_id", workerID)
	}

	if serviceName := GetServiceName(ctx); serviceName != "" {
		fields = append(fields, "service_name", serviceName)
	}

	return fields
}
