// Package workers runs the background pipeline that turns finished
// recordings into invoice drafts.
package workers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/billirae/billirae/llm"
	"github.com/billirae/billirae/model"
	"github.com/billirae/billirae/queue"
	"github.com/billirae/billirae/stt"
)

// Job is one finished recording waiting for transcription.
type Job struct {
	ID       string
	UserID   string
	Audio    []byte
	Filename string
}

// Result is the outcome of one job: the raw transcript plus the parsed
// draft, or the error that stopped the pipeline.
type Result struct {
	JobID      string
	UserID     string
	Transcript string
	Draft      *model.InvoiceDraft
	Err        error
}

// TranscriptionWorker polls its input queue, transcribes each recording and
// parses the transcript into an invoice draft.
type TranscriptionWorker struct {
	transcriber *stt.WhisperTranscriber
	parser      *llm.InvoiceParser
	inputQueue  *queue.Queue[Job]
	results     chan Result
	ctx         context.Context
	cancel      context.CancelFunc
	log         zerolog.Logger
}

// NewTranscriptionWorker initializes a worker around the given transcriber
// and parser.
func NewTranscriptionWorker(transcriber *stt.WhisperTranscriber, parser *llm.InvoiceParser, log zerolog.Logger) (*TranscriptionWorker, error) {
	if transcriber == nil {
		return nil, errors.New("workers: transcriber is required")
	}
	if parser == nil {
		return nil, errors.New("workers: parser is required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TranscriptionWorker{
		transcriber: transcriber,
		parser:      parser,
		inputQueue:  queue.New[Job](),
		results:     make(chan Result, 16),
		ctx:         ctx,
		cancel:      cancel,
		log:         log,
	}, nil
}

// Start begins the worker's processing loop in its own goroutine.
func (tw *TranscriptionWorker) Start() {
	go tw.process()
}

// Results delivers one Result per submitted job.
func (tw *TranscriptionWorker) Results() <-chan Result {
	return tw.results
}

// Available reports whether the transcription backend is configured.
func (tw *TranscriptionWorker) Available() bool {
	return tw.transcriber.Available()
}

// Submit queues a finished recording for processing and returns immediately.
func (tw *TranscriptionWorker) Submit(ctx context.Context, audio []byte, filename string) error {
	return tw.SubmitFor(ctx, "", audio, filename)
}

// SubmitFor queues a recording on behalf of a user.
func (tw *TranscriptionWorker) SubmitFor(_ context.Context, userID string, audio []byte, filename string) error {
	if !tw.Available() {
		return errors.New("workers: transcription backend is not configured")
	}
	if len(audio) == 0 {
		return errors.New("workers: empty recording")
	}
	job := Job{ID: uuid.NewString(), UserID: userID, Audio: audio, Filename: filename}
	tw.inputQueue.Enqueue(job)
	tw.log.Debug().Str("job_id", job.ID).Int("audio_bytes", len(audio)).Msg("recording queued")
	return nil
}

// process continuously polls the input queue, transcribes recordings and
// pushes results onto the results channel.
func (tw *TranscriptionWorker) process() {
	for {
		select {
		case <-tw.ctx.Done():
			tw.log.Info().Msg("transcription worker shutting down")
			return
		default:
			if tw.inputQueue.Len() == 0 {
				time.Sleep(100 * time.Millisecond)
				continue
			}

			job, ok := tw.inputQueue.Dequeue()
			if !ok {
				continue
			}
			tw.deliver(tw.run(job))
		}
	}
}

func (tw *TranscriptionWorker) run(job Job) Result {
	res := Result{JobID: job.ID, UserID: job.UserID}

	transcript, err := tw.transcriber.Transcribe(tw.ctx, job.Audio, job.Filename)
	if err != nil {
		res.Err = err
		return res
	}
	res.Transcript = transcript

	draft, err := tw.parser.Parse(tw.ctx, transcript)
	if err != nil {
		res.Err = err
		return res
	}
	res.Draft = draft
	return res
}

func (tw *TranscriptionWorker) deliver(res Result) {
	select {
	case tw.results <- res:
	case <-tw.ctx.Done():
	}
	if res.Err != nil {
		tw.log.Error().Err(res.Err).Str("job_id", res.JobID).Msg("transcription job failed")
		return
	}
	tw.log.Info().Str("job_id", res.JobID).Bool("draft", res.Draft != nil).Msg("transcription job done")
}

// Stop terminates the processing loop.
func (tw *TranscriptionWorker) Stop() {
	tw.cancel()
}
