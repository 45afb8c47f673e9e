// Package vision wraps the vision-capable narration model behind the two
// call shapes the pipeline needs: a low-latency quick-identify guess and a
// full structured narration generation, optionally streamed.
package vision
