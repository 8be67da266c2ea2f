// Package rag wires retrieval and generation into question answering.
//
// An Orchestrator owns one build lock. Initialize indexes a corpus (under the
// default replace policy the new corpus is built aside and swapped in only
// when the build succeeds) and Query answers a prompt:
//
//	o, err := rag.New(r, idx, generator.NewExtractive())
//	if err != nil {
//	    return err
//	}
//	if _, err := o.Initialize(ctx, docs); err != nil {
//	    return err
//	}
//	answer, err := o.Query(ctx, "What is the capital of France?")
//
// When retrieval yields nothing (an empty index, or every passage below the
// minimum score) Query returns InsufficientInformation without calling the
// generator.
package rag
