package pdfextract

import (
	"regexp"
	"sort"
	"strings"
)

// keywordTaxonomy maps a document category to the terms that signal it.
// Categories double as keyword features for classification and naming.
var keywordTaxonomy = map[string][]string{
	"rechnung":     {"rechnung", "invoice", "rechnungsnummer", "zahlbar", "fällig", "betrag"},
	"vertrag":      {"vertrag", "vereinbarung", "vertragsnummer", "laufzeit", "kündigungsfrist"},
	"steuer":       {"steuer", "finanzamt", "steuerbescheid", "einkommensteuer", "umsatzsteuer", "steuernummer"},
	"versicherung": {"versicherung", "police", "versicherungsschein", "versicherungsnummer", "schadensfall"},
	"bank":         {"kontoauszug", "überweisung", "iban", "sparkasse", "volksbank", "depot"},
	"gehalt":       {"gehalt", "lohn", "entgeltabrechnung", "brutto", "netto", "arbeitgeber"},
	"arzt":         {"arzt", "praxis", "diagnose", "befund", "rezept", "krankenkasse"},
	"handwerker":   {"reparatur", "wartung", "montage", "installation", "handwerker"},
	"energie":      {"strom", "gas", "stadtwerke", "zählerstand", "abschlag", "energieversorgung"},
	"telefon":      {"mobilfunk", "festnetz", "internet", "dsl", "telekom", "vodafone"},
}

const maxKeywords = 5

// detectKeywords returns matched categories ordered by how many of their
// signal terms appear, strongest first.
func detectKeywords(text string) []string {
	lower := strings.ToLower(text)

	type match struct {
		category string
		hits     int
	}
	matches := make([]match, 0, len(keywordTaxonomy))
	for category, terms := range keywordTaxonomy {
		hits := 0
		for _, term := range terms {
			if strings.Contains(lower, term) {
				hits++
			}
		}
		if hits > 0 {
			matches = append(matches, match{category: category, hits: hits})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].hits != matches[j].hits {
			return matches[i].hits > matches[j].hits
		}
		return matches[i].category < matches[j].category
	})
	if len(matches) > maxKeywords {
		matches = matches[:maxKeywords]
	}

	keywords := make([]string, len(matches))
	for i, m := range matches {
		keywords[i] = m.category
	}
	return keywords
}

// Legal-form suffixes mark company names in German documents.
var companyPattern = regexp.MustCompile(`\b((?:[A-ZÄÖÜ][\wÄÖÜäöüß&.\-]*\s+){1,5}(?:GmbH\s*&\s*Co\.?\s*KG|GmbH|AG|KG|SE|OHG|e\.V\.))`)

const maxCompanies = 5

func detectCompanies(text string) []string {
	seen := make(map[string]struct{})
	var companies []string
	for _, m := range companyPattern.FindAllStringSubmatch(text, -1) {
		name := strings.Join(strings.Fields(m[1]), " ")
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		companies = append(companies, name)
		if len(companies) == maxCompanies {
			break
		}
	}
	return companies
}
