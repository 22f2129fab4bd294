package tui

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// DefaultConsent is the built-in informed consent text, one paragraph per entry.
var DefaultConsent = []string{
	"INFORMED CONSENT DOCUMENT",
	"Please read the following informed consent document. If you consent to the study, choose 'I Agree' below. If you do not consent and would like to cancel your participation in the study, choose 'I Decline'.",
	"Project: Fitts' Law pointing study.",
	"This document describes what you will be asked to do during the study, its risks and benefits, and your rights as a participant.",
	"The purpose of this study is to evaluate how quickly and accurately you can click on differently-sized targets placed at varying distances from a starting point. Targets are presented in random order. Each trial takes a few seconds depending on your speed.",
	"To participate in this study, you must:",
	"* Be at least 18 years of age",
	"* Be able to use a computer mouse or trackpad without assistive devices",
	"The software records your pointer movements, how long it takes you to click each target, and how many times you miss. This information is stored anonymously under a randomly generated participant ID. No personally identifiable information is collected.",
	"You will not be compensated for your participation. There are no direct benefits to you, but your participation will contribute to our understanding of human-computer interaction. We do not anticipate any significant risks.",
	"You may end your participation at any time by pressing ESC. If you end your participation early, no results from your session are saved.",
	"By choosing 'I Agree', you acknowledge that you are at least 18 years of age and able to use a computer mouse or trackpad without assistive devices, and you agree to the following statement:",
	"'I have read this consent form and I understand the risks, benefits, and procedures involved with participation in this research study. I hereby agree to participate in this research study.'",
}

// LoadConsent reads consent text from path. Blank lines separate paragraphs;
// consecutive non-blank lines are joined with a space.
func LoadConsent(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only consent file.
			_ = cerr
		}
	}()

	var paragraphs []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, " "))
			current = nil
		}
	}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	if len(paragraphs) == 0 {
		return nil, fmt.Errorf("consent file is empty")
	}
	return paragraphs, nil
}
