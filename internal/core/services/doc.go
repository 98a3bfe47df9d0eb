// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The generation pipeline lives here: the codebase analyzer, the
// conventions synthesizer, the section extractor, the lessons learner
// and the document assembler and merger.
package services
