package extractor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCertificate = `ABC University
Certificate of Completion

Student Name: John Doe
Roll Number: CS001
Course: Computer Science
Grade: A+
Date of Completion: 2023-05-15
Supervisor: Dr. Jane Roe
`

func TestTextExtractsLabeledFields(t *testing.T) {
	rec, err := NewText().Extract(context.Background(), []byte(sampleCertificate), "text/plain")
	require.NoError(t, err)

	assert.Equal(t, "John Doe", rec.StudentName)
	assert.Equal(t, "CS001", rec.RollNumber)
	assert.Equal(t, "Computer Science", rec.Course)
	assert.Equal(t, "A+", rec.Grade)
	assert.Equal(t, "2023-05-15", rec.DateOfCompletion)
	assert.NotEmpty(t, rec.RawText)
}

func TestTextGuessesInstitutionFromHeading(t *testing.T) {
	rec, err := NewText().Extract(context.Background(), []byte(sampleCertificate), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "ABC University", rec.Institution)
}

func TestTextKeepsUnknownLabelsAsExtra(t *testing.T) {
	rec, err := NewText().Extract(context.Background(), []byte(sampleCertificate), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "Dr. Jane Roe", rec.Extra["supervisor"])
}

func TestTextMatchesNoisyLabels(t *testing.T) {
	doc := "Register Numbr: EE042\nCandidate Name : Alice Smith\n"
	rec, err := NewText().Extract(context.Background(), []byte(doc), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "EE042", rec.RollNumber)
	assert.Equal(t, "Alice Smith", rec.StudentName)
}

func TestTextUnreadableInput(t *testing.T) {
	_, err := NewText().Extract(context.Background(), []byte("   \n  "), "text/plain")
	assert.ErrorIs(t, err, ErrUnreadable)

	_, err = NewText().Extract(context.Background(), []byte{0xff, 0xfe, 0x01}, "text/plain")
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestJSONExtractor(t *testing.T) {
	doc := []byte(`{"student_name":"John Doe","roll_number":"CS001","mother_name":"Mary Doe","grade":null}`)
	rec, err := NewJSON().Extract(context.Background(), doc, "application/json")
	require.NoError(t, err)
	assert.Equal(t, "John Doe", rec.StudentName)
	assert.Equal(t, "CS001", rec.RollNumber)
	assert.Equal(t, "Mary Doe", rec.Extra["mother_name"])
	assert.Empty(t, rec.Grade)
}

func TestJSONRejectsNestedShapes(t *testing.T) {
	doc := []byte(`{"student":{"name":"John"}}`)
	_, err := NewJSON().Extract(context.Background(), doc, "application/json")
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestDispatcherRoutesByContentType(t *testing.T) {
	d := NewDispatcher().
		Handle("text/plain", NewText()).
		Handle("application/json", NewJSON())

	rec, err := d.Extract(context.Background(), []byte("Roll Number: CS001"), "text/plain; charset=utf-8")
	require.NoError(t, err)
	assert.Equal(t, "CS001", rec.RollNumber)

	_, err = d.Extract(context.Background(), []byte("x"), "application/octet-stream")
	assert.ErrorIs(t, err, ErrUnreadable)

	_, err = d.Extract(context.Background(), nil, "text/plain")
	assert.ErrorIs(t, err, ErrUnreadable)
}
