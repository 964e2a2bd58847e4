//go:build llama

package runtime

// Native bridge to llama.cpp. The rpath of $ORIGIN lets the runtime
// loader find libllama.so next to the built binary in ./bin, and the
// -L path resolves it at link time for the 'llama' build variant.

/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../bin -lllama
#include <stdlib.h>
#include <llama.h>
*/
import "C"

import (
	"fmt"
	"math/rand"
	"unsafe"
)

func nativeBackendInit() { C.llama_backend_init() }
func nativeBackendFree() { C.llama_backend_free() }

// handle bundles the three native resources plus the vocabulary view and
// the running position counter. It is exclusively owned by Runtime and
// destroyed in strict dependency order: sampler, context, model.
type handle struct {
	model   *C.struct_llama_model
	lctx    *C.struct_llama_context
	sampler *C.struct_llama_sampler
	vocab   *C.struct_llama_vocab
	eos     C.llama_token
	nBatch  int
	nPast   C.llama_pos
	cfg     Config
	closed  bool
}

func newHandle(cfg Config) (*handle, error) {
	acquireBackend()

	cpath := C.CString(cfg.ModelPath)
	defer C.free(unsafe.Pointer(cpath))

	mparams := C.llama_model_default_params()
	mparams.n_gpu_layers = C.int32_t(cfg.GPULayers)
	mparams.main_gpu = 0
	mparams.use_mmap = true

	model := C.llama_model_load_from_file(cpath, mparams)
	if model == nil {
		releaseBackend()
		return nil, fmt.Errorf("failed to load model from %s", cfg.ModelPath)
	}

	vocab := C.llama_model_get_vocab(model)
	if vocab == nil {
		C.llama_model_free(model)
		releaseBackend()
		return nil, fmt.Errorf("model vocabulary unavailable")
	}

	cparams := C.llama_context_default_params()
	cparams.n_ctx = C.uint32_t(cfg.CtxLength)
	cparams.n_batch = C.uint32_t(cfg.BatchSize)
	cparams.n_ubatch = C.uint32_t(cfg.BatchSize)
	cparams.n_threads = C.int32_t(cfg.Threads)
	cparams.n_threads_batch = C.int32_t(cfg.Threads)
	cparams.offload_kqv = true

	lctx := C.llama_init_from_model(model, cparams)
	if lctx == nil {
		C.llama_model_free(model)
		releaseBackend()
		return nil, fmt.Errorf("failed to create llama context")
	}

	sparams := C.llama_sampler_chain_default_params()
	sparams.no_perf = true
	chain := C.llama_sampler_chain_init(sparams)
	if chain == nil {
		C.llama_free(lctx)
		C.llama_model_free(model)
		releaseBackend()
		return nil, fmt.Errorf("failed to create sampler chain")
	}
	if cfg.TopK > 0 {
		C.llama_sampler_chain_add(chain, C.llama_sampler_init_top_k(C.int32_t(cfg.TopK)))
	}
	if cfg.TopP < 0.9999 {
		C.llama_sampler_chain_add(chain, C.llama_sampler_init_top_p(C.float(cfg.TopP), 1))
	}
	if cfg.Temperature != 1.0 {
		C.llama_sampler_chain_add(chain, C.llama_sampler_init_temp(C.float(cfg.Temperature)))
	}
	C.llama_sampler_chain_add(chain, C.llama_sampler_init_dist(C.uint32_t(rand.Uint32())))

	return &handle{
		model:   model,
		lctx:    lctx,
		sampler: chain,
		vocab:   vocab,
		eos:     C.llama_vocab_eos(vocab),
		nBatch:  cfg.BatchSize,
		cfg:     cfg,
	}, nil
}

func (h *handle) close() {
	if h.closed {
		return
	}
	h.closed = true
	if h.sampler != nil {
		C.llama_sampler_free(h.sampler)
		h.sampler = nil
	}
	if h.lctx != nil {
		C.llama_free(h.lctx)
		h.lctx = nil
	}
	if h.model != nil {
		C.llama_model_free(h.model)
		h.model = nil
	}
	releaseBackend()
}

// run drives one generation: reset all per-request state, submit the
// prompt in batches, then sample/emit/decode one token at a time until
// EOS, cancellation, the token budget, or the repeat guard trips.
// emit returning false stops the loop without error.
func (h *handle) run(prompt string, cancel *CancelFlag, emit func([]byte) bool) error {
	mem := C.llama_get_memory(h.lctx)
	C.llama_memory_clear(mem, true)
	C.llama_sampler_reset(h.sampler)
	h.nPast = 0

	tokens, err := h.tokenize(prompt)
	if err != nil {
		return err
	}
	if err := h.decodeSequence(tokens); err != nil {
		return err
	}

	var lastTok C.llama_token = -1
	streak := 0

	for i := 0; i < h.cfg.MaxTokens; i++ {
		if cancel.Canceled() {
			break
		}
		tok := C.llama_sampler_sample(h.sampler, h.lctx, -1)
		if tok == h.eos || tok == C.LLAMA_TOKEN_NULL {
			break
		}
		C.llama_sampler_accept(h.sampler, tok)

		if tok == lastTok {
			streak++
			if streak >= h.cfg.RepeatGuard {
				break
			}
		} else {
			lastTok = tok
			streak = 1
		}

		piece, err := h.tokenPiece(tok)
		if err != nil {
			return err
		}
		if len(piece) > 0 && !emit(piece) {
			break
		}
		if err := h.decodeSequence([]C.llama_token{tok}); err != nil {
			return err
		}
	}
	return nil
}

func (h *handle) tokenize(text string) ([]C.llama_token, error) {
	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))

	n := len(text)
	if n < 32 {
		n = 32
	}
	buf := make([]C.llama_token, n)
	for {
		res := C.llama_tokenize(h.vocab, ctext, C.int32_t(len(text)),
			&buf[0], C.int32_t(len(buf)), false, true)
		if res >= 0 {
			return buf[:res], nil
		}
		buf = make([]C.llama_token, int(-res)+8)
	}
}

func (h *handle) decodeSequence(tokens []C.llama_token) error {
	for processed := 0; processed < len(tokens); {
		take := len(tokens) - processed
		if take > h.nBatch {
			take = h.nBatch
		}
		chunk := tokens[processed : processed+take]

		batch := C.llama_batch_init(C.int32_t(h.nBatch), 0, 1)
		toks := unsafe.Slice(batch.token, take)
		pos := unsafe.Slice(batch.pos, take)
		nSeq := unsafe.Slice(batch.n_seq_id, take)
		seqHeads := unsafe.Slice(batch.seq_id, take)
		logits := unsafe.Slice(batch.logits, take)
		for i, t := range chunk {
			toks[i] = t
			pos[i] = h.nPast + C.llama_pos(i)
			nSeq[i] = 1
			unsafe.Slice(seqHeads[i], 1)[0] = 0
			if i == take-1 {
				logits[i] = 1
			} else {
				logits[i] = 0
			}
		}
		batch.n_tokens = C.int32_t(take)

		rc := C.llama_decode(h.lctx, batch)
		C.llama_batch_free(batch)
		if rc != 0 {
			return fmt.Errorf("llama_decode failed with code %d", int(rc))
		}
		processed += take
		h.nPast += C.llama_pos(take)
	}
	return nil
}

func (h *handle) tokenPiece(tok C.llama_token) ([]byte, error) {
	buf := make([]byte, 64)
	for {
		res := C.llama_token_to_piece(h.vocab, tok,
			(*C.char)(unsafe.Pointer(&buf[0])), C.int32_t(len(buf)), 0, false)
		if res >= 0 {
			out := make([]byte, res)
			copy(out, buf[:res])
			return out, nil
		}
		buf = make([]byte, int(-res)+8)
	}
}
