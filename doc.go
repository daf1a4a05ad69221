/*
 * Copyright (c) 2020 Siemens AG
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy of
 * this software and associated documentation files (the "Software"), to deal in
 * the Software without restriction, including without limitation the rights to
 * use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
 * the Software, and to permit persons to whom the Software is furnished to do so,
 * subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
 * FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
 * COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
 * IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
 * CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 *
 * Author(s): Jonas Plum
 */

// Package orctree rebuilds the original file system layout of a machine from
// a DFIR ORC collection archive. ORC collectors flatten sampled files into
// nested 7z containers under pseudonymized names and record the true volume,
// snapshot and path of every sample in a GetThis.csv manifest. This package
// reverses that flattening, so downstream parsers can work on the result as
// if it were a dumped drive.
//
// Structure
//
// An example output tree for one collection archive:
//     destination/
//         orc_outputs/
//             commands/        command outputs without a manifest entry
//             logs/            collector logs, manifests and statistics
//         C/                   volume, renamed from its VolumeID via volstats.csv
//             Users/
//             Windows/
//         C (vss {...})/       volume shadow copy of the same volume
//         non_extracted.log    one line per member that could not be written
//
// Existing files are never overwritten: a second extraction into the same
// destination leaves every file untouched and records the collisions in
// non_extracted.log.
package orctree
