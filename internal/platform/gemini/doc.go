// Package gemini implements classify.Classifier on top of the genai SDK.
//
// The client speaks the Gemini API wire protocol. Pointing llm.base_url at a
// compatible endpoint lets the same code drive an on-device model.
package gemini
