/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package runner

import (
	"bufio"
	"io"
	"sync"
)

// readers longer than this are split; provisioning tools occasionally dump
// megabyte-long progress lines
const maxLineBytes = 64 * 1024

// streamOutput drains stdout and stderr concurrently into the job's output,
// producing one merged line-oriented stream. Returns after both pipes hit
// EOF.
func streamOutput(job *Job, stdout, stderr io.Reader) {
	var wg sync.WaitGroup
	for _, pipe := range []io.Reader{stdout, stderr} {
		if pipe == nil {
			continue
		}
		wg.Add(1)
		go func(r io.Reader) {
			defer wg.Done()
			scanLines(job, r)
		}(pipe)
	}
	wg.Wait()
}

func scanLines(job *Job, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		job.AppendLine(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		job.AppendLine("output truncated: " + err.Error())
	}
}
