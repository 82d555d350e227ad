package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the upload pipeline.
type Metrics struct {
	// Upload lifecycle metrics
	UploadsInitiated prometheus.Counter
	ChunksStored     prometheus.Counter
	UploadsCanceled  prometheus.Counter

	// Assembly metrics
	AssembliesCompleted prometheus.Counter
	AssemblyMismatches  prometheus.Counter
	AssembledBytes      prometheus.Histogram

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionRetries   prometheus.Counter
	TranscriptionDuration  prometheus.Histogram
	PiecesTranscribed      prometheus.Counter

	// Sweeper metrics
	SweeperDeleted prometheus.Counter
	SweeperErrors  prometheus.Counter
}

// New creates and registers all pipeline metrics against the given registerer.
// Tests pass a fresh prometheus.NewRegistry to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		UploadsInitiated: factory.NewCounter(prometheus.CounterOpts{
			Name: "upload_sessions_initiated_total",
			Help: "Total number of upload sessions created",
		}),
		ChunksStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "upload_chunks_stored_total",
			Help: "Total number of audio chunks written to the chunk store",
		}),
		UploadsCanceled: factory.NewCounter(prometheus.CounterOpts{
			Name: "upload_sessions_canceled_total",
			Help: "Total number of upload sessions canceled by callers",
		}),

		AssembliesCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "audio_assemblies_completed_total",
			Help: "Total number of successful chunk assemblies",
		}),
		AssemblyMismatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "audio_assembly_mismatches_total",
			Help: "Total number of assemblies rejected for chunk count mismatch",
		}),
		AssembledBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "audio_assembled_bytes",
			Help:    "Size distribution of assembled audio buffers",
			Buckets: prometheus.ExponentialBuckets(1024*1024, 2, 10),
		}),

		TranscriptionRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcription_requests_total",
			Help: "Total number of transcription provider requests",
		}),
		TranscriptionSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcription_successes_total",
			Help: "Total number of successful transcriptions",
		}),
		TranscriptionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcription_failures_total",
			Help: "Total number of transcriptions that exhausted retries or failed fatally",
		}),
		TranscriptionRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcription_retries_total",
			Help: "Total number of retried provider calls",
		}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "transcription_duration_seconds",
			Help:    "Wall time of full transcriptions including retries",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		PiecesTranscribed: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcription_pieces_total",
			Help: "Total number of provider-size-safe pieces transcribed",
		}),

		SweeperDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "sweeper_audio_deleted_total",
			Help: "Total number of expired audio blobs deleted by the sweeper",
		}),
		SweeperErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "sweeper_errors_total",
			Help: "Total number of per-item sweeper failures",
		}),
	}
}
